package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/10aburnett/popuppromocodes-script/internal/config"
	"github.com/10aburnett/popuppromocodes-script/internal/model"
	"github.com/10aburnett/popuppromocodes-script/internal/store"
)

// fakeStore is an in-memory store.Store for command tests.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]model.VisitRecord
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]model.VisitRecord{}}
}

func (f *fakeStore) RecordVisit(ctx context.Context, record model.VisitRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.URL] = record
	return nil
}

func (f *fakeStore) Seen(ctx context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[url]
	return ok && rec.Status != model.VisitStatusFailed, nil
}

func (f *fakeStore) GetVisit(ctx context.Context, url string) (*model.VisitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[url]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (f *fakeStore) ListVisits(ctx context.Context, filter store.VisitFilter) ([]model.VisitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.VisitRecord
	for _, rec := range f.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.FoundOnly && (rec.Result == nil || rec.Result.Code == "") {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeStore) CountByStatus(ctx context.Context) (map[model.VisitStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[model.VisitStatus]int)
	for _, rec := range f.records {
		counts[rec.Status]++
	}
	return counts, nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func (f *fakeStore) get(url string) (model.VisitRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[url]
	return rec, ok
}

func testConfig() *config.Config {
	return &config.Config{
		Batch: config.BatchConfig{Concurrency: 2, RatePerMinute: 6000, MaxAttempts: 1},
		Scan:  config.ScanConfig{AppDomain: "whop.com", TimeoutSecs: 5, SettleMs: 10},
	}
}

func TestBuildVisitRecord(t *testing.T) {
	result := &model.ExtractionResult{Code: "promo-784ede4b"}

	found := buildVisitRecord("https://whop.com/a", result, nil)
	assert.Equal(t, model.VisitStatusFound, found.Status)
	assert.Same(t, result, found.Result)

	empty := buildVisitRecord("https://whop.com/a", nil, nil)
	assert.Equal(t, model.VisitStatusEmpty, empty.Status)
	assert.Nil(t, empty.Result)

	failed := buildVisitRecord("https://whop.com/a", nil, errors.New("boom"))
	assert.Equal(t, model.VisitStatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.Error)
}

func TestReadURLList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://whop.com/a\n\n# comment\n  https://whop.com/b  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readURLList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://whop.com/a", "https://whop.com/b"}, urls)
}

func TestReadURLList_MissingFile(t *testing.T) {
	_, err := readURLList(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestProcessBatch(t *testing.T) {
	cfg = testConfig()
	st := newFakeStore()

	// One URL is already checkpointed and must be skipped.
	require.NoError(t, st.RecordVisit(context.Background(), model.VisitRecord{
		URL: "https://whop.com/seen", Status: model.VisitStatusEmpty,
	}))

	visited := struct {
		mu   sync.Mutex
		urls []string
	}{}
	visit := func(ctx context.Context, pageURL string) (*model.ExtractionResult, error) {
		visited.mu.Lock()
		visited.urls = append(visited.urls, pageURL)
		visited.mu.Unlock()
		switch pageURL {
		case "https://whop.com/finds":
			return &model.ExtractionResult{Code: "promo-784ede4b"}, nil
		case "https://whop.com/breaks":
			return nil, errors.New("page load error")
		default:
			return nil, nil
		}
	}

	urls := []string{
		"https://whop.com/finds",
		"https://whop.com/breaks",
		"https://whop.com/quiet",
		"https://whop.com/seen",
	}
	require.NoError(t, processBatch(context.Background(), st, urls, 0, visit))

	visited.mu.Lock()
	assert.Len(t, visited.urls, 3)
	visited.mu.Unlock()

	found, _ := st.get("https://whop.com/finds")
	assert.Equal(t, model.VisitStatusFound, found.Status)
	require.NotNil(t, found.Result)
	assert.Equal(t, "promo-784ede4b", found.Result.Code)

	broke, _ := st.get("https://whop.com/breaks")
	assert.Equal(t, model.VisitStatusFailed, broke.Status)
	assert.Contains(t, broke.Error, "page load error")

	quiet, _ := st.get("https://whop.com/quiet")
	assert.Equal(t, model.VisitStatusEmpty, quiet.Status)

	seen, _ := st.get("https://whop.com/seen")
	assert.Equal(t, model.VisitStatusEmpty, seen.Status)
}

func TestProcessBatch_Limit(t *testing.T) {
	cfg = testConfig()
	st := newFakeStore()

	var calls int
	var mu sync.Mutex
	visit := func(ctx context.Context, pageURL string) (*model.ExtractionResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	}

	urls := []string{"https://whop.com/a", "https://whop.com/b", "https://whop.com/c"}
	require.NoError(t, processBatch(context.Background(), st, urls, 2, visit))
	assert.Equal(t, 2, calls)
}

func TestProcessBatch_Empty(t *testing.T) {
	cfg = testConfig()
	require.NoError(t, processBatch(context.Background(), newFakeStore(), nil, 0, nil))
}

func TestServeHandler(t *testing.T) {
	st := newFakeStore()
	pct := 20.0
	require.NoError(t, st.RecordVisit(context.Background(), model.VisitRecord{
		URL:    "https://whop.com/trading-elite/",
		Status: model.VisitStatusFound,
		Result: &model.ExtractionResult{
			Code:     "promo-784ede4b",
			Discount: &model.DiscountRecord{PercentOff: &pct},
		},
		VisitedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.RecordVisit(context.Background(), model.VisitRecord{
		URL: "https://whop.com/quiet/", Status: model.VisitStatusEmpty,
	}))

	handler := newServeHandler(st)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("results", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var finds []model.VisitRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &finds))
		require.Len(t, finds, 1)
		assert.Equal(t, "promo-784ede4b", finds[0].Result.Code)
	})

	t.Run("results bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results?limit=nope", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("results store failure", func(t *testing.T) {
		broken := newFakeStore()
		broken.listErr = errors.New("db gone")
		rec := httptest.NewRecorder()
		newServeHandler(broken).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var counts map[model.VisitStatus]int
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
		assert.Equal(t, 1, counts[model.VisitStatusFound])
		assert.Equal(t, 1, counts[model.VisitStatusEmpty])
	})
}
