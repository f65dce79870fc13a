// Package store persists per-URL visit outcomes. It is the checkpoint layer
// batch runs resume from: a URL recorded as found or empty is skipped on
// restart, failed visits are retried.
package store

import (
	"context"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// VisitFilter specifies criteria for listing visit records.
type VisitFilter struct {
	Status model.VisitStatus `json:"status,omitempty"`
	// FoundOnly restricts to visits that produced a code.
	FoundOnly bool `json:"found_only,omitempty"`
	// MissingDiscount restricts to found visits whose result carries no
	// discount record — the backfill pass's work queue.
	MissingDiscount bool `json:"missing_discount,omitempty"`
	Limit           int  `json:"limit,omitempty"`
	Offset          int  `json:"offset,omitempty"`
}

// Store defines the persistence interface for visit checkpoints and results.
type Store interface {
	// RecordVisit upserts the outcome for a URL; revisits overwrite.
	RecordVisit(ctx context.Context, record model.VisitRecord) error
	// Seen reports whether url already has a completed (non-failed) record.
	Seen(ctx context.Context, url string) (bool, error)
	GetVisit(ctx context.Context, url string) (*model.VisitRecord, error)
	ListVisits(ctx context.Context, filter VisitFilter) ([]model.VisitRecord, error)
	// CountByStatus returns visit totals keyed by status.
	CountByStatus(ctx context.Context) (map[model.VisitStatus]int, error)

	Migrate(ctx context.Context) error
	Close() error
}
