package model

import "time"

// CapturedResponse is one network response observed while a page rendered.
// Bodies arrive already decoded to text; the capture driver owns encoding.
// The core treats these as read-only.
type CapturedResponse struct {
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Body        string    `json:"body"`
	PostData    string    `json:"post_data,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// CodeOccurrence is a single raw match of the promo-code shape inside a
// captured response. Duplicates (same code, same response) are expected;
// deduplication happens at ranking time.
type CodeOccurrence struct {
	Code string
	// ByteOffset is the index of the match within the response body,
	// or -1 when the code came from a URL query parameter.
	ByteOffset int
	FromURL    bool
	Source     *CapturedResponse
}
