// Package maintenance holds the housekeeping jobs that run beside ingestion:
// archive purging and JSON backup export/import of the grants table.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/colby-usm/GrantGuru/internal/store"
)

// PurgeRecorder observes purge results.
type PurgeRecorder interface {
	ObservePurge(removed int64)
}

// Purger removes grants whose archive date has passed.
type Purger struct {
	store         store.Store
	retentionDays int
	now           func() time.Time
	recorder      PurgeRecorder
	log           *slog.Logger
}

// NewPurger returns a Purger keeping archived grants for retentionDays after
// their archive date. Zero removes everything archived before now.
func NewPurger(s store.Store, retentionDays int) *Purger {
	if retentionDays < 0 {
		retentionDays = 0
	}
	return &Purger{
		store:         s,
		retentionDays: retentionDays,
		now:           time.Now,
		log:           slog.Default().With("component", "purger"),
	}
}

// WithRecorder attaches a purge observer.
func (p *Purger) WithRecorder(r PurgeRecorder) *Purger {
	p.recorder = r
	return p
}

// Cutoff is the archive date before which grants are deleted.
func (p *Purger) Cutoff() time.Time {
	return p.now().UTC().AddDate(0, 0, -p.retentionDays)
}

// Purge deletes expired grants and returns how many were removed.
func (p *Purger) Purge(ctx context.Context) (int64, error) {
	cutoff := p.Cutoff()
	n, err := p.store.PurgeArchived(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge before %s: %w", cutoff.Format(time.DateTime), err)
	}
	if p.recorder != nil {
		p.recorder.ObservePurge(n)
	}
	p.log.Info("archived grants purged", "removed", n, "cutoff", cutoff.Format(time.DateTime))
	return n, nil
}
