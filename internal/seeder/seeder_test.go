package seeder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/foxzi/mailseed/internal/catalog"
	"github.com/foxzi/mailseed/internal/loader"
	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/repository"
	"github.com/foxzi/mailseed/internal/store"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupService(t *testing.T, mode loader.Mode) (*Service, *store.DB) {
	t.Helper()

	db, err := store.Open("sqlite://"+filepath.Join(t.TempDir(), "seed.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	l := loader.New(db, loader.Options{Mode: mode, BatchSize: 100, Concurrency: 2}, testLogger())
	return New(db, l, time.Hour, testLogger()), db
}

func brokenSource() (*catalog.SeedConfig, error) {
	cfg, err := catalog.Build()
	if err != nil {
		return nil, err
	}
	cfg.Threads[0].ContactID = "carol"
	cfg.Threads[1].Labels = append(cfg.Threads[1].Labels, "Taxes")
	return cfg, nil
}

func TestGenerate_NewSession(t *testing.T) {
	for _, mode := range []loader.Mode{loader.ModeTransaction, loader.ModeSaga} {
		t.Run(string(mode), func(t *testing.T) {
			svc, _ := setupService(t, mode)
			ctx := context.Background()

			out, err := svc.Generate(ctx, "")
			require.NoError(t, err)
			require.NotNil(t, out.Session)
			assert.NotEmpty(t, out.Session.ID)
			assert.True(t, out.Created)
			assert.True(t, out.Session.IsSeeded)
			assert.NotNil(t, out.Session.SeededAt)

			cfg, err := catalog.Build()
			require.NoError(t, err)
			assert.Equal(t, len(cfg.Threads), out.Written.Counts.Threads)
			assert.Equal(t, cfg.MessageCount(), out.Written.Counts.Emails)
			assert.Zero(t, svc.locks.held())
		})
	}
}

func TestGenerate_ExplicitIDTwice(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	out, err := svc.Generate(ctx, "demo-1")
	require.NoError(t, err)
	assert.Equal(t, "demo-1", out.Session.ID)

	_, err = svc.Generate(ctx, "demo-1")
	assert.ErrorIs(t, err, ErrAlreadySeeded)
}

func TestGenerate_ExistingUnseeded(t *testing.T) {
	svc, db := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	s := &models.Session{ID: "pending"}
	require.NoError(t, repository.NewSessionRepository(db).Create(ctx, s, time.Hour))

	out, err := svc.Generate(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.True(t, out.Session.IsSeeded)
}

func TestGenerate_InvalidDataWritesNothing(t *testing.T) {
	svc, db := setupService(t, loader.ModeTransaction)
	svc.WithConfigSource(brokenSource)
	ctx := context.Background()

	_, err := svc.Generate(ctx, "rejected")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	var ve *ValidationFailedError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
	assert.Contains(t, err.Error(), "carol")
	assert.Contains(t, err.Error(), "Taxes")

	sess, err := repository.NewSessionRepository(db).GetByID(ctx, "rejected")
	require.NoError(t, err)
	assert.Nil(t, sess, "no session is created for an invalid dataset")
}

func TestEnsureSeeded(t *testing.T) {
	svc, db := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	first, err := svc.EnsureSeeded(ctx, "boot")
	require.NoError(t, err)
	assert.True(t, first.Created)
	require.NotNil(t, first.Written)

	second, err := svc.EnsureSeeded(ctx, "boot")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Nil(t, second.Written, "already seeded session is left alone")
	assert.True(t, second.Session.IsSeeded)

	counts, err := repository.NewStatsRepository(db).Counts(ctx, "boot")
	require.NoError(t, err)
	assert.Equal(t, first.Written.Counts.Emails, counts.Emails)
}

func TestEnsureSeeded_SkipsValidationWhenSeeded(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	_, err := svc.EnsureSeeded(ctx, "boot")
	require.NoError(t, err)

	svc.WithConfigSource(brokenSource)
	out, err := svc.EnsureSeeded(ctx, "boot")
	require.NoError(t, err)
	assert.True(t, out.Session.IsSeeded)
}

func TestEnsureSeeded_Concurrent(t *testing.T) {
	svc, db := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.EnsureSeeded(ctx, "shared")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	cfg, err := catalog.Build()
	require.NoError(t, err)
	counts, err := repository.NewStatsRepository(db).Counts(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, cfg.MessageCount(), counts.Emails, "seed data written exactly once")
	assert.Zero(t, svc.locks.held())
}

func TestReset(t *testing.T) {
	for _, mode := range []loader.Mode{loader.ModeTransaction, loader.ModeSaga} {
		t.Run(string(mode), func(t *testing.T) {
			svc, db := setupService(t, mode)
			ctx := context.Background()

			gen, err := svc.Generate(ctx, "")
			require.NoError(t, err)
			id := gen.Session.ID

			out, err := svc.Reset(ctx, id)
			require.NoError(t, err)
			require.NotNil(t, out.Wiped)
			assert.Equal(t, gen.Written.Counts, out.Wiped.Deleted)
			assert.Equal(t, gen.Written.Counts, out.Written.Counts)
			assert.True(t, out.Session.IsSeeded)
			assert.False(t, out.Session.ExpiresAt.Before(gen.Session.ExpiresAt), "expiry renewed")

			counts, err := repository.NewStatsRepository(db).Counts(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, gen.Written.Counts, counts)
		})
	}
}

func TestReset_UnknownSession(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)

	_, err := svc.Reset(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Reseed(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReseed_InvalidDataKeepsExisting(t *testing.T) {
	svc, db := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	gen, err := svc.Generate(ctx, "")
	require.NoError(t, err)

	svc.WithConfigSource(brokenSource)
	_, err = svc.Reseed(ctx, gen.Session.ID)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	counts, err := repository.NewStatsRepository(db).Counts(ctx, gen.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, gen.Written.Counts, counts)
}

func TestWipe(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	gen, err := svc.Generate(ctx, "")
	require.NoError(t, err)

	res, err := svc.Wipe(ctx, gen.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, gen.Written.Counts, res.Deleted)

	stats, err := svc.Stats(ctx, gen.Session.ID)
	require.NoError(t, err)
	assert.False(t, stats.IsSeeded)
	assert.Zero(t, stats.Counts.Total())

	_, err = svc.Wipe(ctx, "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClean(t *testing.T) {
	svc, db := setupService(t, loader.ModeTransaction)
	sessions := repository.NewSessionRepository(db)
	ctx := context.Background()

	live, err := svc.Generate(ctx, "")
	require.NoError(t, err)

	expired := &models.Session{ID: "expired"}
	require.NoError(t, sessions.Create(ctx, expired, -time.Minute))
	svc.ttl = -time.Minute
	_, err = svc.Generate(ctx, "expired-seeded")
	require.NoError(t, err)

	dry, err := svc.Clean(ctx, CleanOptions{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, dry.Sessions, 2)
	assert.Zero(t, dry.Removed)

	res, err := svc.Clean(ctx, CleanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Empty(t, res.Failed)

	for _, id := range []string{"expired", "expired-seeded"} {
		s, err := sessions.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, s, id)

		counts, err := repository.NewStatsRepository(db).Counts(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, counts.Total(), id)
	}

	s, err := sessions.GetByID(ctx, live.Session.ID)
	require.NoError(t, err)
	assert.NotNil(t, s, "live session survives")
}

func TestClean_OlderThan(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	_, err := svc.Generate(ctx, "")
	require.NoError(t, err)

	res, err := svc.Clean(ctx, CleanOptions{OlderThan: time.Hour, DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, res.Sessions)
}

func TestStats_UnknownSession(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)

	_, err := svc.Stats(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStats_MatchesSummary(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	gen, err := svc.Generate(ctx, "")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, gen.Session.ID)
	require.NoError(t, err)

	summary, err := svc.Preview()
	require.NoError(t, err)

	assert.True(t, stats.IsSeeded)
	assert.Equal(t, summary.Threads, stats.Counts.Threads)
	assert.Equal(t, summary.Messages, stats.Counts.Emails)
	assert.Equal(t, summary.Categories, stats.Categories)
	assert.Equal(t, summary.Flags.Snoozed, stats.Flags.Snoozed)
}

func TestPreview_Invalid(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)
	svc.WithConfigSource(brokenSource)

	_, err := svc.Preview()
	var ve *ValidationFailedError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestPreview_SourceError(t *testing.T) {
	svc, _ := setupService(t, loader.ModeTransaction)
	svc.WithConfigSource(func() (*catalog.SeedConfig, error) { return nil, errors.New("boom") })

	_, err := svc.Preview()
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestSessionStats(t *testing.T) {
	svc, db := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	_, err := svc.Generate(ctx, "")
	require.NoError(t, err)
	require.NoError(t, repository.NewSessionRepository(db).Create(ctx, &models.Session{}, time.Hour))

	st, err := svc.SessionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
	assert.Equal(t, int64(1), st.Seeded)
	assert.Zero(t, st.JournalPending)
}

func TestRecover_NothingPending(t *testing.T) {
	svc, _ := setupService(t, loader.ModeSaga)
	ctx := context.Background()

	gen, err := svc.Generate(ctx, "")
	require.NoError(t, err)

	res, err := svc.Recover(ctx, gen.Session.ID)
	require.NoError(t, err)
	assert.Zero(t, res.Deleted.Total())

	stats, err := svc.Stats(ctx, gen.Session.ID)
	require.NoError(t, err)
	assert.True(t, stats.IsSeeded, "a clean session keeps its flag")
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.held())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Zero(t, k.held())
}

func operationCount(t *testing.T, m *metrics.Metrics, operation, status string) float64 {
	t.Helper()

	var out dto.Metric
	require.NoError(t, m.OperationsTotal.WithLabelValues(operation, status).Write(&out))
	return out.GetCounter().GetValue()
}

func TestEnsureSeeded_ObservedOnce(t *testing.T) {
	m := metrics.New()
	metrics.SetGlobal(m)
	defer metrics.SetGlobal(nil)

	svc, _ := setupService(t, loader.ModeTransaction)
	ctx := context.Background()

	_, err := svc.EnsureSeeded(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, operationCount(t, m, "generate", "success"))
	assert.Zero(t, operationCount(t, m, "ensure", "success"), "empty id is counted as generate only")

	_, err = svc.EnsureSeeded(ctx, "boot-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, operationCount(t, m, "ensure", "success"))
	assert.Equal(t, 1.0, operationCount(t, m, "generate", "success"))
}
