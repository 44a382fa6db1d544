// Package api serves read-only views of the synced programs, history and
// ignored assets, plus health and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/core"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/types"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	queryTimeout = 5 * time.Second
)

type Server struct {
	cfg     config.APIConfig
	store   core.Store
	metrics *telemetry.Metrics
	log     *logger.Logger
	router  *gin.Engine
}

// NewServer builds the router. metrics may be nil, in which case /metrics is
// not registered.
func NewServer(cfg config.APIConfig, store core.Store, metrics *telemetry.Metrics, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		log:     log.WithComponent("api"),
		router:  gin.New(),
	}

	s.router.Use(gin.Recovery(), LoggingMiddleware(s.log))
	if cfg.RequestsPerSecond > 0 {
		s.router.Use(RateLimitMiddleware(cfg))
	}
	if cfg.APIKey != "" {
		s.router.Use(AuthMiddleware(cfg.APIKey, s.log))
	}

	s.router.GET("/health", s.health)
	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	v1 := s.router.Group("/api")
	{
		v1.GET("/programs", s.listPrograms)
		v1.GET("/programs/:platform/:slug", s.getProgram)
		v1.GET("/history", s.listHistory)
		v1.GET("/ignored", s.listIgnored)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("API server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.log.Infow("API server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": logger.Version})
}

// programView is a program with its current scopes
type programView struct {
	types.Program
	Scopes []types.Scope    `json:"scopes"`
	Stats  types.ScopeStats `json:"stats"`
}

func (s *Server) listPrograms(c *gin.Context) {
	platform, ok := s.platformParam(c, c.Query("platform"))
	if !ok {
		return
	}
	limit, offset, ok := s.pagination(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	programs, err := s.store.ListPrograms(ctx, core.ProgramFilter{Platform: platform, Limit: limit, Offset: offset})
	if err != nil {
		s.internalError(c, err, "list programs")
		return
	}
	if programs == nil {
		programs = []types.Program{}
	}
	c.JSON(http.StatusOK, gin.H{"programs": programs, "count": len(programs)})
}

func (s *Server) getProgram(c *gin.Context) {
	platform, ok := s.platformParam(c, c.Param("platform"))
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	program, err := s.store.GetProgram(ctx, platform, c.Param("slug"))
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "program not found"})
		return
	}
	if err != nil {
		s.internalError(c, err, "get program")
		return
	}

	scopes, err := s.store.ListScopes(ctx, program.ID)
	if err != nil {
		s.internalError(c, err, "list scopes")
		return
	}

	view := programView{Program: *program, Scopes: scopes, Stats: types.ScopeStats{}}
	if view.Scopes == nil {
		view.Scopes = []types.Scope{}
	}
	for _, sc := range scopes {
		view.Stats[sc.Type]++
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) listHistory(c *gin.Context) {
	platform, ok := s.platformParam(c, c.Query("platform"))
	if !ok {
		return
	}
	limit, offset, ok := s.pagination(c)
	if !ok {
		return
	}

	filter := core.HistoryFilter{Platform: platform, Limit: limit, Offset: offset}
	if raw := c.Query("event_type"); raw != "" {
		eventType := types.EventType(raw)
		if !validEventType(eventType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown event_type %q", raw)})
			return
		}
		filter.EventType = eventType
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		filter.Since = &since
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	events, err := s.store.ListHistory(ctx, filter)
	if err != nil {
		s.internalError(c, err, "list history")
		return
	}
	if events == nil {
		events = []types.HistoryEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (s *Server) listIgnored(c *gin.Context) {
	platform, ok := s.platformParam(c, c.Query("platform"))
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	assets, err := s.store.ListIgnored(ctx, platform)
	if err != nil {
		s.internalError(c, err, "list ignored")
		return
	}
	if assets == nil {
		assets = []types.IgnoredAsset{}
	}
	c.JSON(http.StatusOK, gin.H{"ignored": assets, "count": len(assets)})
}

// platformParam resolves an optional platform name. An empty name means all
// platforms.
func (s *Server) platformParam(c *gin.Context, raw string) (scope.Platform, bool) {
	if raw == "" {
		return "", true
	}
	platform, ok := scope.ParsePlatform(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown platform %q", raw)})
		return "", false
	}
	return platform, true
}

func (s *Server) pagination(c *gin.Context) (int, int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, 0, false
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return 0, 0, false
	}
	return limit, offset, true
}

func (s *Server) internalError(c *gin.Context, err error, operation string) {
	s.log.LogError(c.Request.Context(), err, "api."+operation)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func validEventType(t types.EventType) bool {
	for _, known := range types.EventTypes {
		if t == known {
			return true
		}
	}
	return false
}
