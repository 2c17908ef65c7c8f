// Package server exposes the engine over HTTP. Workflow execution streams
// newline-delimited JSON events; a client disconnect surfaces as sink closure
// and cancels the remaining work, it never crashes the server.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/taskmesh/engine"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/stream"
	"github.com/hupe1980/taskmesh/workflow"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Options configure the Server.
type Options struct {
	// Logger receives request diagnostics.
	Logger logging.Logger
}

// Server wires the engine façade into an echo HTTP surface.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	logger logging.Logger
	config Config
}

// New creates an HTTP server over the engine.
func New(eng *engine.Engine, cfg Config, optFns ...func(o *Options)) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		echo:   e,
		engine: eng,
		logger: opts.Logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	v1 := s.echo.Group("/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.GET("/workflows", s.handleListWorkflows)
	v1.GET("/workflows/:id", s.handleGetWorkflow)
	v1.POST("/workflows/:id/execute", s.handleExecute)
}

// AnalyzeRequest is the request body for POST /v1/analyze.
type AnalyzeRequest struct {
	Text           string `json:"text"`
	CallerWorkerID string `json:"caller_worker_id"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	analysis, err := s.engine.Analyze(req.Text, req.CallerWorkerID)
	if err != nil {
		s.logger.Error("analyze failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "analysis failed")
	}
	return c.JSON(http.StatusOK, analysis)
}

func (s *Server) handleListWorkflows(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Workflows())
}

func (s *Server) handleGetWorkflow(c echo.Context) error {
	wf, err := s.engine.Workflow(c.Param("id"))
	if err != nil {
		if err == workflow.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	return c.JSON(http.StatusOK, wf)
}

// handleExecute runs a staged workflow. With Accept: application/x-ndjson the
// response streams one JSON event per line while execution progresses and the
// client should fetch the final state via GET /v1/workflows/:id; otherwise
// the response is the aggregate execution result as a single JSON object.
func (s *Server) handleExecute(c echo.Context) error {
	id := c.Param("id")

	if c.Request().Header.Get(echo.HeaderAccept) == "application/x-ndjson" {
		if _, err := s.engine.Workflow(id); err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "workflow not found")
		}
		resp := c.Response()
		resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
		resp.WriteHeader(http.StatusOK)

		sink := stream.NewNDJSONSink(resp)
		defer sink.Close()
		res := s.engine.Execute(c.Request().Context(), id, sink)
		s.logger.Info("workflow %s executed over ndjson: %s", id, res.Message)
		return nil
	}

	sink := stream.NewChannelSink(256)
	done := make(chan workflow.Result, 1)
	go func() {
		done <- s.engine.Execute(c.Request().Context(), id, sink)
		sink.Close()
	}()
	// drain so execution never blocks on an unread buffer
	for range sink.Events() {
	}
	res := <-done

	status := http.StatusOK
	if res.Message == "workflow not found" {
		status = http.StatusNotFound
	}
	return c.JSON(status, res)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server addr=%s", addr)
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP exposes the underlying handler, mainly for httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
