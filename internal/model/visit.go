package model

import "time"

// VisitStatus represents the recorded outcome of one page visit.
type VisitStatus string

const (
	// VisitStatusFound means the visit produced an extraction result.
	VisitStatusFound VisitStatus = "found"
	// VisitStatusEmpty means the visit completed but no code was attributed.
	VisitStatusEmpty VisitStatus = "empty"
	// VisitStatusFailed means navigation or capture failed for the page.
	VisitStatusFailed VisitStatus = "failed"
)

// VisitRecord is the persisted outcome row for one visited page URL. It is
// what the checkpoint store keeps and what exports are materialized from.
type VisitRecord struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Status    VisitStatus       `json:"status"`
	Result    *ExtractionResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	VisitedAt time.Time         `json:"visited_at"`
}
