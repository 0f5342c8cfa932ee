package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"assetflow/internal/models"

	"go.uber.org/zap"
)

// Notifier delivers operator messages. Delivery is fire-and-forget: failures
// are logged and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, dedupKey, message string)
}

// RateLimiter is the subset of the cache used to suppress repeats.
type RateLimiter interface {
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type slackNotifier struct {
	webhookURL  string
	httpClient  *http.Client
	limiter     RateLimiter
	dedupWindow time.Duration
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// SlackNotifier posts to a Slack incoming webhook. An empty URL only logs.
// A nil limiter disables deduplication.
type SlackNotifier interface {
	Notifier
	// Wait blocks until every in-flight delivery finished.
	Wait()
}

// NewSlackNotifier creates a notifier posting to a Slack webhook
func NewSlackNotifier(webhookURL string, limiter RateLimiter, dedupWindow time.Duration, logger *zap.Logger) SlackNotifier {
	return &slackNotifier{
		webhookURL:  webhookURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		limiter:     limiter,
		dedupWindow: dedupWindow,
		logger:      logger,
	}
}

func (n *slackNotifier) Notify(ctx context.Context, dedupKey, message string) {
	if dedupKey != "" && n.limiter != nil {
		limited, err := n.limiter.IsRateLimited(ctx, "notify:"+dedupKey, 1, n.dedupWindow)
		if err != nil {
			n.logger.Warn("notification dedup check failed", zap.String("key", dedupKey), zap.Error(err))
		} else if limited {
			n.logger.Debug("notification suppressed", zap.String("key", dedupKey))
			return
		}
	}

	if n.webhookURL == "" {
		n.logger.Info("operator notification", zap.String("message", message))
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := n.post(sendCtx, message); err != nil {
			n.logger.Error("slack notification failed", zap.Error(err))
		}
	}()
}

// Wait blocks until every in-flight notification has been sent
func (n *slackNotifier) Wait() {
	n.wg.Wait()
}

func (n *slackNotifier) post(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack returned non-success status: %d", resp.StatusCode)
	}
	return nil
}

// escalationDedupKey groups repeats of the same registry gap for one tenant.
func escalationDedupKey(esc *models.Escalation) string {
	return fmt.Sprintf("escalation:%s:%s:%s", esc.Reason, esc.CountryCode, esc.TenantName)
}
