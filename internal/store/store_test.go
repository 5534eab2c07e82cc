package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-intake/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func lenderResult() *model.NormalizedResult {
	minAmt := 5000.0
	return &model.NormalizedResult{
		Kind:      model.KindLender,
		SourceURL: "https://www.fundco.example/",
		Method:    model.MethodAI,
		Lender: &model.LenderProfile{
			LenderName:       "FundCo",
			ProductsOffered:  []string{"Merchant Cash Advance"},
			MinFundingAmount: &minAmt,
		},
		Tags:  []string{"MCA"},
		Notes: "AI Scan Results",
	}
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		req := model.ExtractionRequest{URL: "https://fundco.example", Kind: model.KindLender, Tier: model.TierQuality}
		run, err := s.CreateRun(ctx, req)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, model.KindLender, got.Kind)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.Equal(t, req, got.Request)
		assert.Nil(t, got.Result)
		assert.Empty(t, got.Pushes)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CompleteRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.ExtractionRequest{URL: "https://fundco.example", Kind: model.KindLender})
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, run.ID, lenderResult()))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusPendingReview, got.Status)
		require.NotNil(t, got.Result)
		require.NotNil(t, got.Result.Lender)
		assert.Equal(t, "FundCo", got.Result.Lender.LenderName)
		assert.Equal(t, 5000.0, *got.Result.Lender.MinFundingAmount)
		assert.True(t, got.Reviewable())
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.ExtractionRequest{URL: "https://x.example", Kind: model.KindVendor})
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, "fetch", "could not fetch content"))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "fetch", got.ErrorKind)
		assert.Equal(t, "could not fetch content", got.Error)
		assert.False(t, got.Reviewable())
	})

	t.Run("UpdateMissingRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		assert.ErrorIs(t, s.FailRun(ctx, "missing", "fetch", "x"), ErrNotFound)
		assert.ErrorIs(t, s.CompleteRun(ctx, "missing", lenderResult()), ErrNotFound)
		assert.ErrorIs(t, s.RecordPush(ctx, "missing", model.Push{Sink: "store"}), ErrNotFound)
	})

	t.Run("RecordPush", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.ExtractionRequest{URL: "https://fundco.example", Kind: model.KindLender})
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, run.ID, lenderResult()))

		now := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, s.RecordPush(ctx, run.ID, model.Push{Sink: "notion", Table: "lenders", ExternalID: "page-1", PushedAt: now}))
		require.NoError(t, s.RecordPush(ctx, run.ID, model.Push{Sink: "notion", Table: "lenders", ExternalID: "page-1", PushedAt: now}))
		require.NoError(t, s.RecordPush(ctx, run.ID, model.Push{Sink: "store", Table: "lenders", ExternalID: "lenders/fundco.example", PushedAt: now}))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusApproved, got.Status)
		require.Len(t, got.Pushes, 3)
		assert.Equal(t, "page-1", got.ExternalID("notion"))
		assert.Equal(t, "lenders/fundco.example", got.ExternalID("store"))
		assert.True(t, now.Equal(got.Pushes[0].PushedAt))
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l1, err := s.CreateRun(ctx, model.ExtractionRequest{URL: "https://a.example", Kind: model.KindLender})
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, model.ExtractionRequest{URL: "https://b.example", Kind: model.KindLender})
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, model.ExtractionRequest{URL: "https://c.example", Kind: model.KindVendor})
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, l1.ID, "timeout", "poll"))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		lenders, err := s.ListRuns(ctx, RunFilter{Kind: model.KindLender})
		require.NoError(t, err)
		assert.Len(t, lenders, 2)

		failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, l1.ID, failed[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		recent, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
		require.NoError(t, err)
		assert.Len(t, recent, 3)

		future, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, future)
	})

	t.Run("WriteRecordUpserts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		res := lenderResult()
		rec := NewRecord("run-1", res)
		assert.Equal(t, "lenders", rec.Table)
		assert.Equal(t, "fundco.example", rec.Key)
		assert.Equal(t, "FundCo", rec.Name)
		require.NoError(t, s.WriteRecord(ctx, rec))

		res.Lender.LenderName = "FundCo Capital"
		require.NoError(t, s.WriteRecord(ctx, NewRecord("run-2", res)))

		recs, err := s.ListRecords(ctx, "lenders", 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "run-2", recs[0].RunID)
		assert.Equal(t, "FundCo Capital", recs[0].Name)
		assert.Equal(t, "FundCo Capital", recs[0].Data["lender_name"])
		require.NotNil(t, recs[0].Result)
		assert.Equal(t, "FundCo Capital", recs[0].Result.Lender.LenderName)

		vendors, err := s.ListRecords(ctx, "vendors", 10)
		require.NoError(t, err)
		assert.Empty(t, vendors)
	})
}
