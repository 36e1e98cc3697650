// Package server exposes the turn endpoint: it accepts a turn request and
// streams the model's events back as turn stream frames.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"concierge/config"
	"concierge/model"
	"concierge/provider"
)

// TurnPath is the route the HTTP transport posts to.
const TurnPath = "/api/turn_response"

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	echo     *echo.Echo
	streamer provider.Streamer
}

func New(streamer provider.Streamer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Server] %s %s %d %s err=%v", v.Method, v.URI, v.Status, v.Latency, v.Error)
			}
			return nil
		},
	}))

	s := &Server{echo: e, streamer: streamer}
	e.POST(TurnPath, s.handleTurn)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Server] Listening on %s", addr)
	}
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleTurn streams one turn. Failures before the first frame answer with a
// JSON error; once streaming has begun the stream is simply ended.
func (s *Server) handleTurn(c echo.Context) error {
	var req model.TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid turn request"})
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Server] Turn: %d messages, %d tools", len(req.Messages), len(req.Tools))
	}

	rw := &eventStream{resp: c.Response()}
	err := s.streamer.Stream(c.Request().Context(), req, provider.NewFrameWriter(rw))
	if err == nil {
		return nil
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Server] Turn failed: %v", err)
	}
	if !rw.started {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return nil
}

// eventStream sets the SSE headers on the first write so an early failure can
// still be answered with a JSON error.
type eventStream struct {
	resp    *echo.Response
	started bool
}

func (e *eventStream) Write(p []byte) (int, error) {
	if !e.started {
		e.started = true
		h := e.resp.Header()
		h.Set(echo.HeaderContentType, "text/event-stream")
		h.Set(echo.HeaderCacheControl, "no-cache")
		h.Set(echo.HeaderConnection, "keep-alive")
		e.resp.WriteHeader(http.StatusOK)
	}
	return e.resp.Write(p)
}

func (e *eventStream) Flush() {
	e.resp.Flush()
}
