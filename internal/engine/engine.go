// Package engine selects the content block to show in a placeholder. It keeps
// the block registry, refreshes personalization on demand, and reacts to
// session and identity signals from the tracking pipeline.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/freshness"
	"github.com/Resinat/Inlay/internal/gateway"
	"github.com/Resinat/Inlay/internal/model"
	"github.com/Resinat/Inlay/internal/registry"
)

// DefaultAwaitTimeout bounds the synchronous personalization refresh.
const DefaultAwaitTimeout = 10 * time.Second

// AwaitMode selects how a selection waits for a personalization refresh.
type AwaitMode string

const (
	// AwaitBounded waits until the fetch completes or the timeout elapses.
	AwaitBounded AwaitMode = "BOUNDED"
	// AwaitContext additionally stops waiting when the caller's context is done.
	AwaitContext AwaitMode = "CONTEXT"
)

// ParseAwaitMode parses an AwaitMode (case-insensitive).
func ParseAwaitMode(raw string) (AwaitMode, error) {
	switch m := AwaitMode(strings.ToUpper(strings.TrimSpace(raw))); m {
	case AwaitBounded, AwaitContext:
		return m, nil
	default:
		return "", fmt.Errorf("invalid await mode %q (want BOUNDED or CONTEXT)", raw)
	}
}

// DisplayStateStore keeps per-block display counters.
type DisplayStateStore interface {
	// Get never fails; an absent entry yields a zero state.
	Get(blockID string) model.DisplayState
	SetDisplayed(blockID string, t time.Time)
	SetInteracted(blockID string, t time.Time)
	Clear()
}

// Config configures an Engine.
type Config struct {
	Gateway gateway.Gateway
	Store   DisplayStateStore

	// CustomerIDs is the identity known at startup. When nil, selections
	// return nothing until an identity event arrives.
	CustomerIDs customer.IDs

	AwaitTimeout time.Duration
	AwaitMode    AwaitMode
	// SupportedContentTypes are the resolved types a renderer can show.
	// Defaults to HTML only.
	SupportedContentTypes []block.ContentType
	// AutoLoadPlaceholders are refreshed in the background after each reload.
	AutoLoadPlaceholders []string
	// NoticeDedupWindow suppresses repeated rejection notices. Zero logs all.
	NoticeDedupWindow time.Duration
	// Metrics receives selection and fetch activity. Optional.
	Metrics MetricsSink

	Now func() time.Time
}

// MetricsSink receives engine activity. Calls are made on selection and fetch
// paths and must not block.
type MetricsSink interface {
	OnSelection(placeholderID string, hit bool)
	OnPersonalizationFetch(blocks int, latency time.Duration, err error)
	OnReload(blocks int, err error)
}

type noopMetrics struct{}

func (noopMetrics) OnSelection(string, bool)                         {}
func (noopMetrics) OnPersonalizationFetch(int, time.Duration, error) {}
func (noopMetrics) OnReload(int, error)                              {}

// Engine is the content-block selection engine. It is safe for concurrent use.
type Engine struct {
	gateway gateway.Gateway
	store   DisplayStateStore
	gate    *registry.Gate
	fresh   freshness.Policy
	now     func() time.Time

	awaitTimeout time.Duration
	awaitMode    AwaitMode
	supported    map[block.ContentType]struct{}
	autoLoad     []string

	session *sessionContext
	notices *noticeLog
	metrics MetricsSink

	missingIdentityOnce sync.Once

	// wg tracks fetch goroutines and late applies.
	wg         sync.WaitGroup
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	closed     atomic.Bool
}

// New creates an Engine with an empty registry.
func New(cfg Config) (*Engine, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("engine: gateway is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: display state store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = DefaultAwaitTimeout
	}
	if cfg.AwaitMode == "" {
		cfg.AwaitMode = AwaitBounded
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if len(cfg.SupportedContentTypes) == 0 {
		cfg.SupportedContentTypes = []block.ContentType{block.ContentTypeHTML}
	}

	supported := make(map[block.ContentType]struct{}, len(cfg.SupportedContentTypes))
	for _, ct := range cfg.SupportedContentTypes {
		supported[ct] = struct{}{}
	}

	notices, err := newNoticeLog(cfg.NoticeDedupWindow)
	if err != nil {
		return nil, err
	}

	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	e := &Engine{
		gateway:      cfg.Gateway,
		store:        cfg.Store,
		gate:         registry.NewGate(),
		fresh:        freshness.New(cfg.Now),
		now:          cfg.Now,
		awaitTimeout: cfg.AwaitTimeout,
		awaitMode:    cfg.AwaitMode,
		supported:    supported,
		autoLoad:     append([]string(nil), cfg.AutoLoadPlaceholders...),
		session:      newSessionContext(cfg.CustomerIDs),
		notices:      notices,
		metrics:      cfg.Metrics,
		lifeCtx:      lifeCtx,
		lifeCancel:   lifeCancel,
	}
	return e, nil
}

// BlockSnapshot returns an independent copy of the registered block with id.
func (e *Engine) BlockSnapshot(id string) (*block.Block, bool) {
	var out *block.Block
	e.gate.WithReadWrite(func(r *registry.Registry) {
		if b, ok := r.Find(id); ok {
			out = b.Clone()
		}
	})
	return out, out != nil
}

// Snapshot returns independent copies of every registered block in registry order.
func (e *Engine) Snapshot() []*block.Block {
	var out []*block.Block
	e.gate.WithReadWrite(func(r *registry.Registry) {
		out = make([]*block.Block, 0, r.Len())
		for _, b := range r.Blocks() {
			out = append(out, b.Clone())
		}
	})
	return out
}

// ClearAll drops every registered block. Display states are kept.
func (e *Engine) ClearAll() {
	e.gate.WithReadWrite(func(r *registry.Registry) {
		r.Clear()
	})
	log.Println("[engine] registry cleared")
}

// Close stops background work and waits for in-flight fetches to settle.
// Selections after Close return nothing.
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.lifeCancel()
	e.gate.Wait()
	e.wg.Wait()
	e.notices.Close()
}

func (e *Engine) supports(ct block.ContentType) bool {
	_, ok := e.supported[ct]
	return ok
}

// downloadable reports whether a static definition can ever become renderable.
func (e *Engine) downloadable(b *block.Block) bool {
	return b.NeedsPersonalization() || e.supports(b.StaticContentType)
}

func (e *Engine) reportMissingIdentity(op string) {
	e.missingIdentityOnce.Do(func() {
		log.Printf("[engine] %s called before any customer identity is known; returning no content", op)
	})
}
