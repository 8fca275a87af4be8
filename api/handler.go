package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msedata/msesync/config"
	"github.com/msedata/msesync/scrape"
	"github.com/msedata/msesync/store"
)

// Handler wires the read repositories and the sync runner to the HTTP
// surface. No business logic lives here: reads map straight onto the
// store, and fill-data only admits a run.
type Handler struct {
	records    *store.Records
	watermarks *store.Watermarks
	runner     *scrape.Runner
}

func NewHandler(records *store.Records, watermarks *store.Watermarks, runner *scrape.Runner) *Handler {
	return &Handler{records: records, watermarks: watermarks, runner: runner}
}

func (h *Handler) GetIssuers(c *gin.Context) {
	issuers, err := h.records.Issuers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, issuers)
}

func (h *Handler) GetAllIssuerData(c *gin.Context) {
	records, err := h.records.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetIssuerData returns one issuer's records in chronological order. An
// unknown issuer is not an error, just an empty array.
func (h *Handler) GetIssuerData(c *gin.Context) {
	records, err := h.records.ByIssuer(c.Param("issuer"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetIssuerLastDate returns the issuer's watermark, or null if the issuer
// has never been synced.
func (h *Handler) GetIssuerLastDate(c *gin.Context) {
	mark, ok, err := h.watermarks.LastDate(c.Param("issuer"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, mark)
}

// FillData starts a sync run and answers immediately. The run's outcome is
// never part of the response; callers poll the issuer-dates endpoint to see
// progress.
func (h *Handler) FillData(c *gin.Context) {
	if !h.runner.Start() {
		c.JSON(http.StatusConflict, gin.H{"status": "sync already running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// SetupRoutes builds the gin engine with cross-origin access restricted to
// the configured origin.
func SetupRoutes(cfg config.ServerConfig, h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.AllowedOrigin},
		AllowMethods: []string{http.MethodGet},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/issuers", h.GetIssuers)
	r.GET("/api/issuer-data", h.GetAllIssuerData)
	r.GET("/api/issuer-data/:issuer", h.GetIssuerData)
	r.GET("/api/issuer-dates/:issuer", h.GetIssuerLastDate)
	r.GET("/api/fill-data", h.FillData)

	return r
}
