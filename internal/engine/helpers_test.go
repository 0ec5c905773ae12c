package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/state"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeGateway serves canned blocks and payloads and counts calls.
type fakeGateway struct {
	mu                sync.Mutex
	blocks            []*block.Block
	staticErr         error
	payloads          map[string]block.Payload
	personalizedErr   error
	staticCalls       int
	personalizedCalls int
	requested         [][]string
	requestedFor      []customer.IDs

	// release, when set, blocks personalization fetches until closed.
	release chan struct{}
}

func newFakeGateway(blocks ...*block.Block) *fakeGateway {
	return &fakeGateway{blocks: blocks, payloads: make(map[string]block.Payload)}
}

func (g *fakeGateway) FetchStaticBlocks(ctx context.Context) ([]*block.Block, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.staticCalls++
	if g.staticErr != nil {
		return nil, g.staticErr
	}
	out := make([]*block.Block, 0, len(g.blocks))
	for _, b := range g.blocks {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (g *fakeGateway) FetchPersonalized(ctx context.Context, ids customer.IDs, blockIDs []string) ([]block.Payload, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	g.mu.Lock()
	g.personalizedCalls++
	g.requested = append(g.requested, append([]string(nil), blockIDs...))
	g.requestedFor = append(g.requestedFor, ids.Clone())
	release := g.release
	g.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.personalizedErr != nil {
		return nil, g.personalizedErr
	}
	var out []block.Payload
	for _, id := range blockIDs {
		if p, ok := g.payloads[id]; ok {
			out = append(out, *p.Clone())
		}
	}
	return out, nil
}

func (g *fakeGateway) setPayload(p block.Payload) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloads[p.BlockID] = p
}

func (g *fakeGateway) setPersonalizedErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.personalizedErr = err
}

func (g *fakeGateway) setStaticErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.staticErr = err
}

func (g *fakeGateway) setBlocks(blocks ...*block.Block) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocks = blocks
}

func (g *fakeGateway) personalizedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.personalizedCalls
}

func (g *fakeGateway) staticCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.staticCalls
}

type testEnv struct {
	engine  *Engine
	gateway *fakeGateway
	clock   *fakeClock
	store   *state.DisplayStore
}

func newTestEnv(t *testing.T, gw *fakeGateway, mutate ...func(*Config)) *testEnv {
	t.Helper()
	clock := newFakeClock()
	store := state.NewDisplayStore(nil)
	cfg := Config{
		Gateway:     gw,
		Store:       store,
		CustomerIDs: customer.IDs{"cookie": "c1"},
		Now:         clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return &testEnv{engine: e, gateway: gw, clock: clock, store: store}
}

func (env *testEnv) reload(t *testing.T) {
	t.Helper()
	if err := env.engine.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
}

func intPtr(v int) *int { return &v }

func htmlBlock(id string, priority *int, placeholders ...string) *block.Block {
	return &block.Block{
		ID:                id,
		Name:              "block " + id,
		Placeholders:      placeholders,
		Priority:          priority,
		FrequencyPolicy:   block.FrequencyAlways,
		StaticContentType: block.ContentTypeHTML,
		StaticContent:     map[string]string{block.HTMLContentKey: "<p>" + id + "</p>"},
	}
}

func personalizedBlock(id string, priority *int, placeholders ...string) *block.Block {
	return &block.Block{
		ID:                id,
		Name:              "block " + id,
		Placeholders:      placeholders,
		Priority:          priority,
		FrequencyPolicy:   block.FrequencyAlways,
		StaticContentType: block.ContentTypeNotDefined,
	}
}

func okPayload(id string, ttlSeconds int64) block.Payload {
	return block.Payload{
		BlockID:         id,
		Status:          block.StatusOK,
		TTLSeconds:      ttlSeconds,
		ContentType:     block.ContentTypeHTML,
		TrackingConsent: true,
		Content:         map[string]string{block.HTMLContentKey: "<p>personal " + id + "</p>"},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting: %s", msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
