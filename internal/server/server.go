// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/singleflight"

	"github.com/phobologic/codescope/internal/analyze"
	"github.com/phobologic/codescope/internal/cache"
	"github.com/phobologic/codescope/internal/config"
	"github.com/phobologic/codescope/internal/discover"
	"github.com/phobologic/codescope/internal/model"
	"github.com/phobologic/codescope/internal/ranking"
	"github.com/phobologic/codescope/internal/toon"
)

// statusClientClosed is reported when the caller went away mid-run.
const statusClientClosed = 499

// Server handles analysis uploads. Identical concurrent uploads share one
// run.
type Server struct {
	engine    *analyze.Engine
	cache     *cache.Cache
	logger    *slog.Logger
	maxUpload int64
	flight    singleflight.Group
	router    *gin.Engine
}

// New builds the router. c may be nil to disable caching.
func New(engine *analyze.Engine, c *cache.Cache, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:    engine,
		cache:     c,
		logger:    logger,
		maxUpload: engine.Config().Server.MaxUploadBytes,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("codescope"))
	r.Use(requestLogger(logger))

	v1 := r.Group("/v1")
	v1.GET("/health", s.health)
	v1.POST("/analyze", s.analyze)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type outcome struct {
	report *model.AnalysisReport
	cached bool
}

func (s *Server) analyze(c *gin.Context) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", s.maxUpload)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body; expected a zip archive"})
		return
	}

	name := c.DefaultQuery("name", "upload.zip")
	key := uploadKey(s.engine.Config(), name, data)

	ctx := c.Request.Context()
	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.run(ctx, key, data, name)
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	out := v.(outcome)
	if shared {
		s.logger.Debug("upload shared an in-flight run", "key", key)
	}

	report := out.report
	if n, err := strconv.Atoi(c.Query("max_files")); err == nil && n > 0 {
		report = ranking.SelectFiles(report, n)
	}
	if f := c.Query("file"); f != "" {
		report = ranking.FilterByPath(report, f)
	}

	if out.cached {
		c.Header("X-Codescope-Cache", "hit")
	} else {
		c.Header("X-Codescope-Cache", "miss")
	}
	switch {
	case c.Query("format") == "toon":
		c.String(http.StatusOK, toon.Encode(report)+"\n")
	case c.Query("pretty") == "true":
		c.IndentedJSON(http.StatusOK, report)
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (s *Server) run(ctx context.Context, key string, data []byte, name string) (outcome, error) {
	if s.cache != nil {
		r, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		}
		if ok {
			return outcome{report: r, cached: true}, nil
		}
	}
	r, err := s.engine.Run(ctx, analyze.Archive(data, name))
	if err != nil {
		return outcome{}, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, key, r); err != nil {
			s.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return outcome{report: r}, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case discover.IsCollectionError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, analyze.ErrCanceled):
		c.AbortWithStatus(statusClientClosed)
	default:
		s.logger.Error("analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// uploadKey identifies an upload for the cache and singleflight. It covers
// the name, which becomes the report root.
func uploadKey(cfg config.Config, name string, data []byte) string {
	h := blake3.New()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(data)
	return analyze.Digest(cfg, nil)[:16] + "-" + hex.EncodeToString(h.Sum(nil))
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
