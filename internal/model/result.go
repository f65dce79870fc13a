package model

import "time"

// AttributedCandidate is a code occurrence that survived the attribution
// filter, enriched with any discount bundle found around it.
type AttributedCandidate struct {
	Code        string          `json:"code"`
	Discount    *DiscountRecord `json:"discount,omitempty"`
	SourceURL   string          `json:"source_url"`
	ContentType string          `json:"content_type"`
	Timestamp   time.Time       `json:"timestamp"`
	PageRoute   string          `json:"page_route,omitempty"`
	// Reason is the label of the attribution rule that accepted this
	// candidate, kept for diagnostics.
	Reason string `json:"reason,omitempty"`
	Score  int    `json:"score"`
}

// ExtractionResult is the single final output of one engine invocation.
type ExtractionResult struct {
	Code        string          `json:"code"`
	Discount    *DiscountRecord `json:"discount,omitempty"`
	SourceURL   string          `json:"source_url"`
	ContentType string          `json:"content_type"`
}
