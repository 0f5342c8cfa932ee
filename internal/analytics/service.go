package analytics

import (
	"context"
	"sort"
	"strings"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OverviewCache caches the global overview between reads.
type OverviewCache interface {
	GetOverview(ctx context.Context) (*models.GlobalOverview, error)
	SetOverview(ctx context.Context, overview *models.GlobalOverview, ttl time.Duration) error
}

const overviewTTL = time.Minute

// AnalyticsService serves the read-only warehouse projections.
type AnalyticsService struct {
	shared repositories.SharedStore
	cache  OverviewCache
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(shared repositories.SharedStore, cache OverviewCache, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		shared: shared,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// GetWarehouseMetrics returns the metrics of one warehouse
func (a *AnalyticsService) GetWarehouseMetrics(ctx context.Context, warehouseID uuid.UUID) (*models.WarehouseMetrics, error) {
	metrics, err := a.shared.WarehouseMetrics().Get(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		return nil, common.NewNotFound("warehouse metrics", warehouseID.String())
	}
	return metrics, nil
}

// GetCountryMetrics sums the warehouses of a registered country. A country
// whose warehouses never received an item reports zeros.
func (a *AnalyticsService) GetCountryMetrics(ctx context.Context, countryCode string) (*models.CountryMetrics, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		return nil, common.NewValidation("country_code", "is required")
	}

	rows, err := a.shared.WarehouseMetrics().ListByCountry(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		country, err := a.shared.Warehouses().GetCountry(ctx, code)
		if err != nil {
			return nil, err
		}
		if country == nil {
			return nil, common.NewNotFound("country", code)
		}
	}
	return aggregateCountry(code, rows), nil
}

// GetGlobalOverview returns the cross-warehouse totals, cached briefly
func (a *AnalyticsService) GetGlobalOverview(ctx context.Context) (*models.GlobalOverview, error) {
	if a.cache != nil {
		cached, err := a.cache.GetOverview(ctx)
		if err != nil {
			a.logger.Warn("overview cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	rows, err := a.shared.WarehouseMetrics().ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byCountry := map[string][]models.WarehouseMetrics{}
	tenants := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		byCountry[row.CountryCode] = append(byCountry[row.CountryCode], row)
		for _, tm := range row.TenantMetrics {
			if tm.TotalProducts > 0 {
				tenants[tm.TenantID] = struct{}{}
			}
		}
	}

	overview := &models.GlobalOverview{
		TotalWarehouses: len(rows),
		TotalTenants:    int64(len(tenants)),
		Countries:       make([]models.CountryMetrics, 0, len(byCountry)),
		GeneratedAt:     a.now().UTC(),
	}
	for code, countryRows := range byCountry {
		country := aggregateCountry(code, countryRows)
		overview.TotalProducts += country.TotalProducts
		overview.TotalComputers += country.TotalComputers
		overview.TotalOtherProducts += country.TotalOtherProducts
		overview.Countries = append(overview.Countries, *country)
	}
	sort.Slice(overview.Countries, func(i, j int) bool {
		return overview.Countries[i].CountryCode < overview.Countries[j].CountryCode
	})

	if a.cache != nil {
		if err := a.cache.SetOverview(ctx, overview, overviewTTL); err != nil {
			a.logger.Warn("overview cache write failed", zap.Error(err))
		}
	}
	return overview, nil
}

func aggregateCountry(code string, rows []models.WarehouseMetrics) *models.CountryMetrics {
	country := &models.CountryMetrics{
		CountryCode: code,
		Warehouses:  rows,
	}
	if country.Warehouses == nil {
		country.Warehouses = []models.WarehouseMetrics{}
	}
	for _, row := range rows {
		country.TotalProducts += row.TotalProducts
		country.TotalComputers += row.TotalComputers
		country.TotalOtherProducts += row.TotalOtherProducts
	}
	return country
}
