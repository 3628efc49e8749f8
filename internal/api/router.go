package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"noticeboard/internal/auth"
	"noticeboard/internal/blobstore"
	"noticeboard/internal/metrics"
	"noticeboard/internal/playlist"
	"noticeboard/internal/ws"
	"noticeboard/pkg/models"
)

const ServiceName = "noticeboard"

// Deps is everything the HTTP layer needs from the rest of the server.
type Deps struct {
	Store     *playlist.Store
	Blobs     *blobstore.Store
	Hub       *ws.Hub
	Publisher ws.Publisher
	Logger    *slog.Logger

	AuthSecret     []byte
	AllowedOrigins []string
	WriteTimeout   time.Duration
	PublicDir      string
	Version        string
}

// NewRouter wires middleware, API routes, the websocket endpoint and the
// static pages.
func NewRouter(d Deps) *gin.Engine {
	if d.Publisher == nil {
		d.Publisher = d.Hub
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(d.Logger))
	r.Use(metrics.Middleware())
	r.Use(CORS(ws.NewOriginPolicy(d.AllowedOrigins)))

	notify := NewNotifier(d.Publisher, d.Logger)
	contentHandler := NewContentHandler(d.Store, d.Blobs, notify, d.Logger, d.WriteTimeout)
	uploadHandler := NewUploadHandler(d.Store, d.Blobs, notify, d.Logger, d.WriteTimeout)
	textHandler := NewTextHandler(d.Store, notify, d.Logger, d.WriteTimeout)
	requireOperator := auth.Middleware(d.AuthSecret)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/content", contentHandler.GetContent)
		apiGroup.DELETE("/content/:id", requireOperator, contentHandler.DeleteContent)
		apiGroup.POST("/reorder", requireOperator, contentHandler.Reorder)
		apiGroup.POST("/upload", requireOperator, uploadHandler.Upload)
		apiGroup.POST("/text", requireOperator, textHandler.AddText)
	}

	r.GET("/ws", gin.WrapF(d.Hub.ServeWs))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": ServiceName,
			"version": d.Version,
			"viewers": d.Hub.Count(),
			"items":   len(d.Store.List()),
		})
	})
	r.GET("/metrics", metrics.Handler())

	r.Static(models.UploadsURLPrefix, d.Blobs.Dir())
	if d.PublicDir != "" {
		mountPages(r, d.PublicDir)
	}
	return r
}

// mountPages serves the dashboard at / and everything else in dir by path.
func mountPages(r *gin.Engine, dir string) {
	r.GET("/", func(c *gin.Context) {
		page := filepath.Join(dir, "dashboard.html")
		if _, err := os.Stat(page); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dashboard not installed"})
			return
		}
		c.File(page)
	})

	files := http.FileServer(http.Dir(dir))
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})
}
