package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantDirectory looks tenants up by name.
type TenantDirectory interface {
	GetTenantByName(ctx context.Context, name string) (*models.Tenant, error)
}

// TenantCache caches registry lookups. GetTenant returns (nil, nil) on a miss.
type TenantCache interface {
	GetTenant(ctx context.Context, name string) (*models.Tenant, error)
	SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error
	InvalidateTenant(ctx context.Context, name string) error
}

// TenantProvisioner creates and migrates a tenant's database.
type TenantProvisioner interface {
	Provision(ctx context.Context, tenantName string) error
}

// TenantService manages tenant records and their databases
type TenantService interface {
	TenantDirectory
	Onboard(ctx context.Context, req *OnboardTenantRequest) (*models.Tenant, error)
	UpdateRecoverableConfig(ctx context.Context, name string, config map[string]bool) (*models.Tenant, error)
	Deactivate(ctx context.Context, name string) error
}

type OnboardTenantRequest struct {
	Name              string          `json:"name" validate:"required,max=48"`
	DisplayName       string          `json:"display_name" validate:"required"`
	Country           string          `json:"country" validate:"omitempty,len=2"`
	State             string          `json:"state"`
	City              string          `json:"city"`
	ZipCode           string          `json:"zip_code"`
	Address           string          `json:"address"`
	Apartment         string          `json:"apartment"`
	Phone             string          `json:"phone"`
	RecoverableConfig map[string]bool `json:"recoverable_config"`
}

const tenantCacheTTL = 5 * time.Minute

var tenantNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

type tenantService struct {
	tenants     repositories.TenantRepository
	cache       TenantCache
	provisioner TenantProvisioner
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(tenants repositories.TenantRepository, cache TenantCache, provisioner TenantProvisioner, validate *validator.Validate, logger *zap.Logger) TenantService {
	return &tenantService{
		tenants:     tenants,
		cache:       cache,
		provisioner: provisioner,
		validate:    validate,
		logger:      logger,
	}
}

// GetTenantByName returns (nil, nil) for unknown tenants. Cache failures fall
// through to the registry.
func (s *tenantService) GetTenantByName(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidation("tenant", "is required")
	}

	if s.cache != nil {
		cached, err := s.cache.GetTenant(ctx, name)
		if err != nil {
			s.logger.Warn("tenant cache read failed", zap.String("tenant", name), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	tenant, err := s.tenants.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get tenant %q: %w", name, err)
	}
	if tenant == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.SetTenant(ctx, tenant, tenantCacheTTL); err != nil {
			s.logger.Warn("tenant cache write failed", zap.String("tenant", name), zap.Error(err))
		}
	}
	return tenant, nil
}

// Onboard provisions the tenant database before registering the tenant, so
// a failed onboarding can simply be retried.
func (s *tenantService) Onboard(ctx context.Context, req *OnboardTenantRequest) (*models.Tenant, error) {
	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !tenantNamePattern.MatchString(req.Name) {
		return nil, common.NewValidation("name", "may only contain lowercase letters, digits and '_'")
	}

	existing, err := s.tenants.GetByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("tenant %q: %w", req.Name, common.ErrDuplicate)
	}

	if err := s.provisioner.Provision(ctx, req.Name); err != nil {
		return nil, fmt.Errorf("provision tenant %q: %w", req.Name, err)
	}

	tenant := &models.Tenant{
		ID:                uuid.New(),
		Name:              req.Name,
		DisplayName:       req.DisplayName,
		Country:           req.Country,
		State:             req.State,
		City:              req.City,
		ZipCode:           req.ZipCode,
		Address:           req.Address,
		Apartment:         req.Apartment,
		Phone:             req.Phone,
		RecoverableConfig: req.RecoverableConfig,
		Widgets:           defaultWidgets(),
		IsActive:          true,
	}
	if tenant.RecoverableConfig == nil {
		tenant.RecoverableConfig = map[string]bool{}
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}

	s.logger.Info("tenant onboarded", zap.String("tenant", tenant.Name))
	return tenant, nil
}

func (s *tenantService) UpdateRecoverableConfig(ctx context.Context, name string, config map[string]bool) (*models.Tenant, error) {
	tenant, err := s.mustGet(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.tenants.UpdateRecoverableConfig(ctx, tenant.ID, config); err != nil {
		return nil, err
	}
	s.invalidate(ctx, tenant.Name)
	tenant.RecoverableConfig = config
	return tenant, nil
}

// Deactivate is a soft delete; the tenant database is kept.
func (s *tenantService) Deactivate(ctx context.Context, name string) error {
	tenant, err := s.mustGet(ctx, name)
	if err != nil {
		return err
	}
	if err := s.tenants.SetActive(ctx, tenant.ID, false); err != nil {
		return err
	}
	s.invalidate(ctx, tenant.Name)
	s.logger.Info("tenant deactivated", zap.String("tenant", tenant.Name))
	return nil
}

func (s *tenantService) mustGet(ctx context.Context, name string) (*models.Tenant, error) {
	tenant, err := s.GetTenantByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, common.NewNotFound("tenant", name)
	}
	return tenant, nil
}

func (s *tenantService) invalidate(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, name); err != nil {
		s.logger.Warn("tenant cache invalidation failed", zap.String("tenant", name), zap.Error(err))
	}
}

func defaultWidgets() []models.Widget {
	return []models.Widget{
		{ID: "stock", Order: 0},
		{ID: "computer-age", Order: 1},
		{ID: "members", Order: 2},
		{ID: "shipments", Order: 3},
	}
}
