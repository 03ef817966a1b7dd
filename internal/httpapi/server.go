// Package httpapi exposes a thin, read-only introspection surface over the
// memory subsystem: health, aggregate status, and search. It is an
// operator/test surface, not a write path — entries are only ever created
// through the writer (C6).
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fyrsmithlabs/memoryd/internal/logging"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/reranker"
	"github.com/fyrsmithlabs/memoryd/internal/search"
	"github.com/fyrsmithlabs/memoryd/internal/store"
	"go.uber.org/zap"
)

// StatusStore is the subset of the embedded store Status needs.
type StatusStore interface {
	Status(ctx context.Context, repoID string) (store.Status, error)
}

// Server serves /healthz, /status, and /search over echo.
type Server struct {
	echo        *echo.Echo
	statusStore StatusStore
	search      *search.Service
	shutdownFor ShutdownConfig
	logger      *logging.Logger
}

// ShutdownConfig holds the ops server's listen port and graceful-shutdown timeout.
type ShutdownConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StatusResponse is the JSON body of GET /status.
type StatusResponse struct {
	RepoID        string         `json:"repoId"`
	Total         int            `json:"total"`
	StaleCount    int            `json:"staleCount"`
	EntryCounts   map[string]int `json:"entryCounts"`
	LastUpdatedAt int64          `json:"lastUpdatedAt"`
}

// SearchResponse is the JSON body of GET /search.
type SearchResponse struct {
	MethodUsed string          `json:"methodUsed"`
	Hits       []SearchHitJSON `json:"hits"`
}

// SearchHitJSON is the wire shape of one search.Hit.
type SearchHitJSON struct {
	Entry        memory.MemoryEntry `json:"entry"`
	LexicalScore *float64           `json:"lexicalScore,omitempty"`
	VectorScore  *float64           `json:"vectorScore,omitempty"`
	Combined     float64            `json:"combined"`
}

// New builds a Server with standard logging/recover/request-ID middleware
// and registers its routes. serviceName is reported by /healthz.
func New(serviceName string, statusStore StatusStore, searchSvc *search.Service, shutdown ShutdownConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
	if err != nil {
		logger = logging.FromContext(context.Background())
	}
	logger = logger.Named(serviceName)

	s := &Server{echo: e, statusStore: statusStore, search: searchSvc, shutdownFor: shutdown, logger: logger}
	s.registerRoutes(serviceName)
	return s
}

func (s *Server) registerRoutes(serviceName string) {
	s.echo.GET("/healthz", s.handleHealth(serviceName))
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/search", s.handleSearch)
}

func (s *Server) handleHealth(serviceName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: serviceName})
	}
}

func (s *Server) handleStatus(c echo.Context) error {
	repoID := c.QueryParam("repoId")
	if repoID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "repoId is required")
	}
	status, err := s.statusStore.Status(c.Request().Context(), repoID)
	if err != nil {
		s.logger.Error(c.Request().Context(), "status lookup failed", zap.String("repoId", repoID), zap.Error(err))
		return mapError(err)
	}
	entryCounts := make(map[string]int, len(status.EntryCounts))
	for t, n := range status.EntryCounts {
		entryCounts[string(t)] = n
	}
	return c.JSON(http.StatusOK, StatusResponse{
		RepoID:        repoID,
		Total:         status.Total,
		StaleCount:    status.StaleCount,
		EntryCounts:   entryCounts,
		LastUpdatedAt: status.LastUpdatedAt,
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	repoID := c.QueryParam("repoId")
	query := c.QueryParam("q")
	if repoID == "" || query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "repoId and q are required")
	}
	topK := 10
	if v := c.QueryParam("topK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}
	mode := search.Mode(c.QueryParam("mode"))

	result, err := s.search.Query(c.Request().Context(), repoID, query, search.Options{
		Mode:             mode,
		TopKLexical:      topK,
		TopKVector:       topK,
		TopKFinal:        topK,
		Intent:           reranker.Intent(c.QueryParam("intent")),
		FailureSignature: c.QueryParam("failureSignature"),
	})
	if err != nil {
		s.logger.Error(c.Request().Context(), "search failed", zap.String("repoId", repoID), zap.String("mode", string(mode)), zap.Error(err))
		return mapError(err)
	}

	hits := make([]SearchHitJSON, len(result.Hits))
	for i, h := range result.Hits {
		hits[i] = SearchHitJSON{Entry: h.Entry, LexicalScore: h.LexicalScore, VectorScore: h.VectorScore, Combined: h.Combined}
	}
	return c.JSON(http.StatusOK, SearchResponse{MethodUsed: string(result.MethodUsed), Hits: hits})
}

func mapError(err error) *echo.HTTPError {
	if kind, ok := memory.KindOf(err); ok {
		switch kind {
		case memory.KindConfigError:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case memory.KindBackendTimeout:
			return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// Start runs the server until ctx is cancelled, then performs a graceful
// shutdown bounded by ShutdownConfig.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.shutdownFor.Port)
	errCh := make(chan error, 1)

	s.logger.Info(ctx, "httpapi server starting", zap.Int("port", s.shutdownFor.Port))

	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("httpapi server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		s.logger.Error(ctx, "httpapi server start failed", zap.Error(err))
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownFor.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "httpapi server shutdown failed", zap.Error(err))
			return fmt.Errorf("httpapi server shutdown: %w", err)
		}
		s.logger.Info(ctx, "httpapi server shut down cleanly")
		return http.ErrServerClosed
	}
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
