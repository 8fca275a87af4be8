package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/msedata/msesync/config"
	"github.com/msedata/msesync/models"
	"github.com/msedata/msesync/scrape"
	"github.com/msedata/msesync/store"
)

type triggerFunc func(ctx context.Context) error

func (f triggerFunc) Run(ctx context.Context) error { return f(ctx) }

const testOrigin = "http://localhost:3000"

func newTestRouter(t *testing.T, trigger scrape.Trigger) (*gin.Engine, *store.Records, *store.Watermarks) {
	t.Helper()
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
	runner := scrape.NewRunner(trigger, time.Minute)

	r := SetupRoutes(
		config.ServerConfig{Listen: ":0", AllowedOrigin: testOrigin},
		NewHandler(records, watermarks, runner),
	)
	return r, records, watermarks
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func noopTrigger() scrape.Trigger {
	return triggerFunc(func(ctx context.Context) error { return nil })
}

func TestGetIssuers(t *testing.T) {
	r, records, _ := newTestRouter(t, noopTrigger())
	for _, issuer := range []string{"KMB", "ALK"} {
		require.NoError(t, records.Upsert(models.IssuerData{
			Issuer: issuer, Date: models.NewTradeDate(2024, time.March, 1),
		}))
	}

	w := get(r, "/api/issuers")
	require.Equal(t, http.StatusOK, w.Code)

	var issuers []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issuers))
	assert.Equal(t, []string{"ALK", "KMB"}, issuers)
}

func TestGetIssuerDataChronological(t *testing.T) {
	r, records, _ := newTestRouter(t, noopTrigger())
	for _, d := range []models.TradeDate{
		models.NewTradeDate(2024, time.March, 1),
		models.NewTradeDate(2024, time.January, 15),
	} {
		require.NoError(t, records.Upsert(models.IssuerData{
			Issuer: "ALK", Date: d, LastTradePrice: "21.790,00",
		}))
	}

	w := get(r, "/api/issuer-data/ALK")
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.IssuerData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-15", rows[0].Date.String())
	assert.Equal(t, "2024-03-01", rows[1].Date.String())
	assert.Equal(t, "21.790,00", rows[0].LastTradePrice)
}

func TestGetIssuerDataUnknownIssuerIsEmptyArray(t *testing.T) {
	r, _, _ := newTestRouter(t, noopTrigger())

	w := get(r, "/api/issuer-data/NOPE")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetIssuerLastDate(t *testing.T) {
	r, _, watermarks := newTestRouter(t, noopTrigger())
	require.NoError(t, watermarks.Advance("ALK", models.NewTradeDate(2024, time.May, 1)))

	w := get(r, "/api/issuer-dates/ALK")
	require.Equal(t, http.StatusOK, w.Code)

	var mark models.IssuerDate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mark))
	assert.Equal(t, "ALK", mark.Issuer)
	assert.Equal(t, "2024-05-01", mark.LastDate.String())
}

func TestGetIssuerLastDateNeverSyncedIsNull(t *testing.T) {
	r, _, _ := newTestRouter(t, noopTrigger())

	w := get(r, "/api/issuer-dates/NOPE")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())
}

func TestFillDataAcceptedAndConflict(t *testing.T) {
	release := make(chan struct{})
	r, _, _ := newTestRouter(t, triggerFunc(func(ctx context.Context) error {
		<-release
		return nil
	}))
	defer close(release)

	w := get(r, "/api/fill-data")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = get(r, "/api/fill-data")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFillDataFailureNotSurfaced(t *testing.T) {
	r, records, _ := newTestRouter(t, triggerFunc(func(ctx context.Context) error {
		return assert.AnError
	}))

	w := get(r, "/api/fill-data")
	assert.Equal(t, http.StatusAccepted, w.Code, "trigger failures stay server-side")

	// Reads keep working regardless of the failed run.
	require.Eventually(t, func() bool {
		return get(r, "/api/fill-data").Code == http.StatusAccepted
	}, 2*time.Second, 10*time.Millisecond)

	_, err := records.Issuers()
	assert.NoError(t, err)
}

func TestCORSRestrictedToConfiguredOrigin(t *testing.T) {
	r, _, _ := newTestRouter(t, noopTrigger())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/issuers", nil)
	req.Header.Set("Origin", testOrigin)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/issuers", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t, noopTrigger())
	assert.Equal(t, http.StatusOK, get(r, "/health").Code)
}
