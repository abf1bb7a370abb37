package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// Refresher periodically rebuilds the baseline cache from status history.
//
// Builds happen entirely off the ingest path: the refresher assembles a
// complete snapshot from the repository and publishes it with one atomic
// swap. A failed build leaves the previous snapshot in place.
type Refresher struct {
	cache    *Cache
	repo     equipment.Repository
	interval time.Duration
	logger   *logging.Logger
}

// NewRefresher creates a refresher rebuilding cache every interval.
func NewRefresher(cache *Cache, repo equipment.Repository, interval time.Duration, logger *logging.Logger) *Refresher {
	return &Refresher{
		cache:    cache,
		repo:     repo,
		interval: interval,
		logger:   logger.With("component", "baseline"),
	}
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
// Intended to be started as a goroutine from main.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("initial baseline build failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("baseline refresh failed", "error", err)
			}
		}
	}
}

// Refresh builds one snapshot from current history and publishes it.
func (r *Refresher) Refresh(ctx context.Context) error {
	snap, err := Build(ctx, r.repo)
	if err != nil {
		return err
	}
	r.cache.Replace(snap)
	r.logger.Info("baseline refreshed", "devices", snap.Devices())
	return nil
}

// Build assembles a snapshot from the non-abnormal status history of every
// active device. Devices with a zero unit count contribute no baselines
// because per-unit normalisation is undefined for them.
func Build(ctx context.Context, repo equipment.Repository) (*Snapshot, error) {
	devices, err := repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices for baseline: %w", err)
	}

	b := newBuilder()
	for _, dev := range devices {
		if dev.Units <= 0 {
			continue
		}
		id := dev.CanonicalID()
		for _, channel := range []equipment.Channel{equipment.ChannelRed, equipment.ChannelGreen} {
			samples, err := repo.AmpereHistory(ctx, dev.Type, dev.ID, channel)
			if err != nil {
				return nil, fmt.Errorf("loading %s history of %s: %w", channel, id, err)
			}
			b.add(id, channel, averageByDuty(samples, dev.Units))
		}
	}
	return b.snapshot(), nil
}
