package state

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/septivank/asset-tracker/internal/service"
)

// AlertGate lets one alert per key through every interval. The marker keys
// live in Redis, so the interval holds across instances.
type AlertGate struct {
	client   *redis.Client
	prefix   string
	interval time.Duration
}

// NewAlertGate creates an alert gate with keys under prefix
func NewAlertGate(client *redis.Client, prefix string, interval time.Duration) *AlertGate {
	return &AlertGate{client: client, prefix: prefix, interval: interval}
}

var _ service.AlertGate = (*AlertGate)(nil)

// Allow reports whether no alert under key was let through in the last interval
func (g *AlertGate) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, fmt.Sprintf("%s:alert:%s", g.prefix, key), time.Now().UTC().Format(time.RFC3339), g.interval).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set alert marker: %w", err)
	}
	return ok, nil
}
