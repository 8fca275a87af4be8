package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/msedata/msesync/models"
	"github.com/msedata/msesync/store"
)

// triggerFunc adapts a function to the Trigger interface.
type triggerFunc func(ctx context.Context) error

func (f triggerFunc) Run(ctx context.Context) error { return f(ctx) }

func waitIdle(t *testing.T, r *Runner) {
	t.Helper()
	require.Eventually(t, func() bool { return !r.Running() },
		2*time.Second, 10*time.Millisecond, "runner never went idle")
}

func TestRunnerSingleFlight(t *testing.T) {
	release := make(chan struct{})
	runner := NewRunner(triggerFunc(func(ctx context.Context) error {
		<-release
		return nil
	}), time.Minute)

	assert.True(t, runner.Start())
	assert.False(t, runner.Start(), "second start while a run is in flight")

	close(release)
	waitIdle(t, runner)

	assert.True(t, runner.Start(), "a fresh run is admitted after completion")
	waitIdle(t, runner)
}

func TestRunnerFailureDoesNotStickRunning(t *testing.T) {
	runner := NewRunner(triggerFunc(func(ctx context.Context) error {
		return errors.New("scraper exited with code 1")
	}), time.Minute)

	assert.True(t, runner.Start())
	waitIdle(t, runner)
	assert.True(t, runner.Start(), "failed runs release the in-flight slot")
	waitIdle(t, runner)
}

func TestRunnerAppliesTimeout(t *testing.T) {
	var sawDeadline bool
	done := make(chan struct{})
	runner := NewRunner(triggerFunc(func(ctx context.Context) error {
		defer close(done)
		_, sawDeadline = ctx.Deadline()
		return ctx.Err()
	}), 50*time.Millisecond)

	require.True(t, runner.Start())
	<-done
	assert.True(t, sawDeadline)
	waitIdle(t, runner)
}

// A failed trigger must leave the read path untouched, and a successful one
// must make its rows and watermark visible to subsequent queries.
func TestRunnerEndToEndAgainstStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.IssuerData{}, &models.IssuerDate{}))

	records := store.NewRecords(db)
	watermarks := store.NewWatermarks(db)
	newDate := models.NewTradeDate(2024, time.May, 1)

	// Stand-in for the external scraper: it owns both writes.
	runner := NewRunner(triggerFunc(func(ctx context.Context) error {
		if err := records.Upsert(models.IssuerData{
			Issuer: "XYZ", Date: newDate, LastTradePrice: "1.234,00",
		}); err != nil {
			return err
		}
		return watermarks.Advance("XYZ", newDate)
	}), time.Minute)

	require.True(t, runner.Start())
	waitIdle(t, runner)

	mark, ok, err := watermarks.LastDate("XYZ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-05-01", mark.LastDate.String())

	rows, err := records.ByIssuer("XYZ")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-05-01", rows[0].Date.String())

	// Failure isolation: a failing run leaves the stored data readable.
	failing := NewRunner(triggerFunc(func(ctx context.Context) error {
		return errors.New("exit status 1")
	}), time.Minute)
	require.True(t, failing.Start())
	waitIdle(t, failing)

	issuers, err := records.Issuers()
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ"}, issuers)
}
