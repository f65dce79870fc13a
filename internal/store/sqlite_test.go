package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "visits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func foundRecord(url, code string, discount *model.DiscountRecord, at time.Time) model.VisitRecord {
	return model.VisitRecord{
		URL:    url,
		Status: model.VisitStatusFound,
		Result: &model.ExtractionResult{
			Code:        code,
			Discount:    discount,
			SourceURL:   url,
			ContentType: "application/json",
		},
		VisitedAt: at,
	}
}

func TestSQLite_RecordAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pct := 20.0
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rec := foundRecord("https://whop.com/a", "promo-784ede4b", &model.DiscountRecord{PercentOff: &pct}, at)
	require.NoError(t, st.RecordVisit(ctx, rec))

	got, err := st.GetVisit(ctx, "https://whop.com/a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, model.VisitStatusFound, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "promo-784ede4b", got.Result.Code)
	require.NotNil(t, got.Result.Discount)
	assert.Equal(t, 20.0, *got.Result.Discount.PercentOff)
}

func TestSQLite_GetMissing(t *testing.T) {
	st := newTestStore(t)
	got, err := st.GetVisit(context.Background(), "https://whop.com/none")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_UpsertOverwrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordVisit(ctx, model.VisitRecord{
		URL:       "https://whop.com/a",
		Status:    model.VisitStatusFailed,
		Error:     "net::ERR_TIMED_OUT",
		VisitedAt: at,
	}))
	require.NoError(t, st.RecordVisit(ctx, foundRecord("https://whop.com/a", "promo-784ede4b", nil, at.Add(time.Hour))))

	got, err := st.GetVisit(ctx, "https://whop.com/a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.VisitStatusFound, got.Status)
	assert.Empty(t, got.Error)

	counts, err := st.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.VisitStatus]int{model.VisitStatusFound: 1}, counts)
}

func TestSQLite_Seen(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, st.RecordVisit(ctx, foundRecord("https://whop.com/found", "promo-784ede4b", nil, at)))
	require.NoError(t, st.RecordVisit(ctx, model.VisitRecord{URL: "https://whop.com/empty", Status: model.VisitStatusEmpty, VisitedAt: at}))
	require.NoError(t, st.RecordVisit(ctx, model.VisitRecord{URL: "https://whop.com/failed", Status: model.VisitStatusFailed, Error: "boom", VisitedAt: at}))

	for url, want := range map[string]bool{
		"https://whop.com/found":  true,
		"https://whop.com/empty":  true,
		"https://whop.com/failed": false, // failed visits are retried
		"https://whop.com/never":  false,
	} {
		seen, err := st.Seen(ctx, url)
		require.NoError(t, err, url)
		assert.Equal(t, want, seen, url)
	}
}

func TestSQLite_ListVisits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	pct := 20.0
	require.NoError(t, st.RecordVisit(ctx, foundRecord("https://whop.com/with-discount", "promo-aaaa1111", &model.DiscountRecord{PercentOff: &pct}, base)))
	require.NoError(t, st.RecordVisit(ctx, foundRecord("https://whop.com/no-discount", "promo-bbbb2222", nil, base.Add(time.Minute))))
	require.NoError(t, st.RecordVisit(ctx, model.VisitRecord{URL: "https://whop.com/empty", Status: model.VisitStatusEmpty, VisitedAt: base.Add(2 * time.Minute)}))
	require.NoError(t, st.RecordVisit(ctx, model.VisitRecord{URL: "https://whop.com/failed", Status: model.VisitStatusFailed, Error: "boom", VisitedAt: base.Add(3 * time.Minute)}))

	all, err := st.ListVisits(ctx, VisitFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	// Oldest first.
	assert.Equal(t, "https://whop.com/with-discount", all[0].URL)

	found, err := st.ListVisits(ctx, VisitFilter{FoundOnly: true})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	missing, err := st.ListVisits(ctx, VisitFilter{MissingDiscount: true})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "https://whop.com/no-discount", missing[0].URL)

	failed, err := st.ListVisits(ctx, VisitFilter{Status: model.VisitStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)

	limited, err := st.ListVisits(ctx, VisitFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "https://whop.com/no-discount", limited[0].URL)
}

func TestSQLite_CountByStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, st.RecordVisit(ctx, foundRecord("https://whop.com/a", "promo-784ede4b", nil, at)))
	require.NoError(t, st.RecordVisit(ctx, model.VisitRecord{URL: "https://whop.com/b", Status: model.VisitStatusEmpty, VisitedAt: at}))
	require.NoError(t, st.RecordVisit(ctx, model.VisitRecord{URL: "https://whop.com/c", Status: model.VisitStatusEmpty, VisitedAt: at}))

	counts, err := st.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.VisitStatusFound])
	assert.Equal(t, 2, counts[model.VisitStatusEmpty])
	assert.Zero(t, counts[model.VisitStatusFailed])
}
