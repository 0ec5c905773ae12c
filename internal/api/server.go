package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/config"
	"github.com/Resinat/Inlay/internal/engine"
	"github.com/Resinat/Inlay/internal/event"
	"github.com/Resinat/Inlay/internal/metrics"
	"github.com/Resinat/Inlay/internal/model"
)

// Engine is the selection engine surface the API drives.
type Engine interface {
	PickForPlaceholder(ctx context.Context, placeholderID string) *block.Block
	BlockSnapshot(id string) (*block.Block, bool)
	Snapshot() []*block.Block
	Session() engine.SessionInfo
	OnEventCreated(ev event.Event)
	OnShown(placeholderID string, b *block.Block)
	OnNoContent(placeholderID string, b *block.Block)
	OnClose(placeholderID string, b *block.Block)
	OnAction(placeholderID string, b *block.Block, action engine.Action)
	OnError(placeholderID string, b *block.Block, message string)
}

// DisplayStates reads per-block display counters.
type DisplayStates interface {
	Get(blockID string) model.DisplayState
}

// Options wires a Server.
type Options struct {
	ListenAddress   string
	Port            int
	AdminToken      string
	APIMaxBodyBytes int64

	SystemInfo   SystemInfo
	PublicConfig config.PublicConfig

	Engine        Engine
	DisplayStates DisplayStates
	Metrics       *metrics.Manager
	// Reload synchronously reloads the block registry.
	Reload func(ctx context.Context) error
}

// Server wraps the HTTP server and mux for the Inlay API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz())

	// Authenticated routes
	authed := http.NewServeMux()
	authed.Handle("GET /api/v1/system/info", HandleSystemInfo(opts.SystemInfo))
	authed.Handle("GET /api/v1/system/config", HandleSystemConfig(opts.PublicConfig))

	if opts.Engine != nil {
		authed.Handle("GET /api/v1/session", HandleGetSession(opts.Engine))
		authed.Handle("POST /api/v1/events", HandleTrackEvent(opts.Engine))

		// Blocks.
		authed.Handle("GET /api/v1/blocks", HandleListBlocks(opts.Engine))
		authed.Handle("GET /api/v1/blocks/{id}", HandleGetBlock(opts.Engine))

		// Placeholders.
		authed.Handle("GET /api/v1/placeholders/{placeholder}/block", HandlePickBlock(opts.Engine))
		authed.Handle("POST /api/v1/placeholders/{placeholder}/blocks/{block}/shown", HandleShown(opts.Engine))
		authed.Handle("POST /api/v1/placeholders/{placeholder}/blocks/{block}/no-content", HandleNoContent(opts.Engine))
		authed.Handle("POST /api/v1/placeholders/{placeholder}/blocks/{block}/closed", HandleClosed(opts.Engine))
		authed.Handle("POST /api/v1/placeholders/{placeholder}/blocks/{block}/action", HandleAction(opts.Engine))
		authed.Handle("POST /api/v1/placeholders/{placeholder}/blocks/{block}/error", HandleRenderError(opts.Engine))
	}
	if opts.Reload != nil {
		authed.Handle("POST /api/v1/reload", HandleReload(opts.Reload))
	}
	if opts.DisplayStates != nil {
		authed.Handle("GET /api/v1/display-states/{block}", HandleGetDisplayState(opts.DisplayStates))
	}

	if opts.Metrics != nil {
		authed.Handle("GET /api/v1/metrics/summary", HandleMetricsSummary(opts.Metrics))
		authed.Handle("GET /api/v1/metrics/realtime", HandleRealtimeSelections(opts.Metrics))
	}

	limitedAuthed := RequestBodyLimitMiddleware(opts.APIMaxBodyBytes, authed)
	mux.Handle("/api/", AuthMiddleware(opts.AdminToken, limitedAuthed))

	srv := &http.Server{
		Addr:    net.JoinHostPort(opts.ListenAddress, strconv.Itoa(opts.Port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln. It blocks until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
