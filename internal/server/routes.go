package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	syncHandler "github.com/modforge/modsync/internal/server/handlers/sync"
	"github.com/modforge/modsync/internal/server/middlewares"
	syncSvc "github.com/modforge/modsync/internal/server/sync"
	"github.com/modforge/modsync/internal/version"
)

const defaultRateLimit = "120-M"

func SetupRoutes(svc *syncSvc.SyncService, config *Config) http.Handler {
	r := gin.New()

	rateLimit := config.RateLimit
	if rateLimit == "" {
		rateLimit = defaultRateLimit
	}

	syncH := syncHandler.New(svc)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	if config.HTTP.TLSEnabled() {
		r.Use(middlewares.HSTS())
	}
	r.Use(gzip.Gzip(gzip.BestSpeed))
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler(svc))

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.RateLimiter(rateLimit))
	{
		v1.GET("/sync/sequence", syncH.GetSequence)
		v1.GET("/sync/changes", syncH.GetChanges)
		v1.GET("/sync/snapshot", syncH.GetSnapshot)
		v1.GET("/sync/hashes", syncH.GetHashes)
		v1.GET("/sync/file/*filepath", syncH.DownloadFile)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	// return a plaintext
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

// HealthHandler reports liveness plus the changelog position, so a probe can
// tell a healthy-but-stale authority from a live one.
func HealthHandler(svc *syncSvc.SyncService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		body := gin.H{
			"status": "ok",
		}
		if seq, err := svc.CurrentSequence(); err == nil {
			body["sequence"] = seq
		}
		if updated, err := svc.LastUpdated(); err == nil && !updated.IsZero() {
			body["last_updated"] = updated.UTC().Format(time.RFC3339Nano)
		}
		ctx.PureJSON(http.StatusOK, body)
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
