package capture

import (
	"context"
	"time"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

// MemoryDriver replays pre-recorded captures, keyed by navigated URL. It
// backs engine and command tests without a browser.
type MemoryDriver struct {
	// Captures maps page URL to the responses delivered for its visit.
	Captures map[string][]model.CapturedResponse
	// InlineBlocks maps page URL to its inline data blocks.
	InlineBlocks map[string][]string
	// NavigateErr, when set, fails every navigation — simulating a
	// transport failure.
	NavigateErr error
}

// NewSession returns a fresh replay session.
func (d *MemoryDriver) NewSession(ctx context.Context) (Session, error) {
	return &memorySession{driver: d}, nil
}

type memorySession struct {
	driver  *MemoryDriver
	current string
	closed  bool
}

func (s *memorySession) Navigate(ctx context.Context, url string) error {
	if s.driver.NavigateErr != nil {
		return s.driver.NavigateErr
	}
	s.current = url
	return nil
}

func (s *memorySession) Reload(ctx context.Context) error {
	if s.driver.NavigateErr != nil {
		return s.driver.NavigateErr
	}
	return nil
}

func (s *memorySession) WaitQuiescent(ctx context.Context, settle, deadline time.Duration) error {
	return nil
}

func (s *memorySession) Responses() []model.CapturedResponse {
	return s.driver.Captures[s.current]
}

func (s *memorySession) InlineDataBlocks(ctx context.Context) ([]string, error) {
	return s.driver.InlineBlocks[s.current], nil
}

func (s *memorySession) Location(ctx context.Context) (string, error) {
	return s.current, nil
}

func (s *memorySession) Close() error {
	s.closed = true
	return nil
}
