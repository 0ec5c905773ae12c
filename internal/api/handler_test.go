package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/config"
	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/engine"
	"github.com/Resinat/Inlay/internal/gateway"
	"github.com/Resinat/Inlay/internal/metrics"
	"github.com/Resinat/Inlay/internal/state"
)

const testAdminToken = "test-admin-token"

const testFixture = `
blocks:
  - id: promo
    name: Promo
    placeholders: [home]
    load_priority: 10
    frequency: always
  - id: banner
    name: Banner
    placeholders: [home, cart]
    load_priority: 5
    frequency: always
    content_type: html
    content: {html: "<p>banner</p>"}
personalized:
  promo:
    status: ok
    ttl_seconds: 60
    content_type: html
    content: {html: "<p>promo</p>"}
`

type testServer struct {
	srv     *Server
	engine  *engine.Engine
	store   *state.DisplayStore
	metrics *metrics.Manager
}

func newTestServer(t *testing.T, reload func(ctx context.Context) error) *testServer {
	t.Helper()
	gw, err := gateway.ParseFixture([]byte(testFixture))
	if err != nil {
		t.Fatalf("ParseFixture: %v", err)
	}
	store := state.NewDisplayStore(nil)
	mgr := metrics.NewManager(metrics.ManagerConfig{})
	e, err := engine.New(engine.Config{
		Gateway:               gw,
		Store:                 store,
		CustomerIDs:           customer.IDs{"cookie": "c1"},
		AwaitTimeout:          time.Second,
		SupportedContentTypes: []block.ContentType{block.ContentTypeHTML},
		Metrics:               mgr,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(e.Close)
	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if reload == nil {
		reload = e.Reload
	}

	srv := NewServer(Options{
		ListenAddress:   "127.0.0.1",
		Port:            2270,
		AdminToken:      testAdminToken,
		APIMaxBodyBytes: 1 << 20,
		SystemInfo: SystemInfo{
			Version:   "1.0.0-test",
			GitCommit: "abc123",
			BuildTime: "2026-01-01T00:00:00Z",
			StartedAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		PublicConfig: config.PublicConfig{
			GatewayMode:  config.GatewayModeFixture,
			AwaitTimeout: config.Duration(time.Second),
		},
		Engine:        e,
		DisplayStates: store,
		Metrics:       mgr,
		Reload:        reload,
	})
	return &testServer{srv: srv, engine: e, store: store, metrics: mgr}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal body %q: %v", rec.Body.String(), err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: got %d, want %d, body=%s", rec.Code, want, rec.Body.String())
	}
}

// --- /healthz ---

func TestHealthz_OK(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	assertStatus(t, rec, http.StatusOK)
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("body: got %v", body)
	}
}

// --- auth ---

func TestAPI_RequiresAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)

	assertStatus(t, rec, http.StatusUnauthorized)
	assertBodyContains(t, rec, "UNAUTHORIZED")
}

// --- system ---

func TestSystemInfo(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/system/info", "")
	assertStatus(t, rec, http.StatusOK)

	var info SystemInfo
	decodeJSON(t, rec, &info)
	if info.Version != "1.0.0-test" || info.GitCommit != "abc123" {
		t.Fatalf("system info: %+v", info)
	}
}

func TestSystemConfig(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/system/config", "")
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, `"gateway_mode":"fixture"`)
	assertBodyContains(t, rec, `"await_timeout":"1s"`)
}

// --- placeholders ---

func TestPickBlock_ReturnsHighestPriorityPersonalized(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/placeholders/home/block", "")
	assertStatus(t, rec, http.StatusOK)

	var resp struct {
		Placeholder string `json:"placeholder"`
		Block       *struct {
			ID           string            `json:"id"`
			Status       string            `json:"status"`
			ContentType  string            `json:"content_type"`
			Content      map[string]string `json:"content"`
			Personalized *struct {
				TTLSeconds int64 `json:"ttl_seconds"`
			} `json:"personalized"`
		} `json:"block"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Placeholder != "home" {
		t.Fatalf("placeholder: got %q", resp.Placeholder)
	}
	if resp.Block == nil {
		t.Fatal("expected a block")
	}
	if resp.Block.ID != "promo" {
		t.Fatalf("block id: got %q, want promo", resp.Block.ID)
	}
	if resp.Block.Status != string(block.StatusOK) {
		t.Fatalf("status: got %q", resp.Block.Status)
	}
	if resp.Block.Content["html"] != "<p>promo</p>" {
		t.Fatalf("content: got %v", resp.Block.Content)
	}
	if resp.Block.Personalized == nil || resp.Block.Personalized.TTLSeconds != 60 {
		t.Fatalf("personalized: got %+v", resp.Block.Personalized)
	}
}

func TestPickBlock_EmptyPlaceholderReturnsNullBlock(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/placeholders/checkout/block", "")
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, `"block":null`)
}

// --- feedback ---

func TestShown_RecordsDisplay(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/placeholders/cart/blocks/banner/shown", "")
	assertStatus(t, rec, http.StatusNoContent)

	rec = ts.do(t, http.MethodGet, "/api/v1/display-states/banner", "")
	assertStatus(t, rec, http.StatusOK)
	var st struct {
		BlockID       string `json:"block_id"`
		DisplayCount  int    `json:"display_count"`
		InteractCount int    `json:"interact_count"`
	}
	decodeJSON(t, rec, &st)
	if st.BlockID != "banner" || st.DisplayCount != 1 || st.InteractCount != 0 {
		t.Fatalf("display state: %+v", st)
	}
}

func TestClosedAndAction_RecordInteraction(t *testing.T) {
	ts := newTestServer(t, nil)
	assertStatus(t, ts.do(t, http.MethodPost, "/api/v1/placeholders/home/blocks/promo/closed", ""), http.StatusNoContent)
	assertStatus(t, ts.do(t, http.MethodPost, "/api/v1/placeholders/home/blocks/promo/action",
		`{"name":"cta","url":"https://example.com"}`), http.StatusNoContent)

	if got := ts.store.Get("promo").InteractCount; got != 2 {
		t.Fatalf("interact count: got %d, want 2", got)
	}
}

func TestNoContent_CountsAsDisplay(t *testing.T) {
	ts := newTestServer(t, nil)
	assertStatus(t, ts.do(t, http.MethodPost, "/api/v1/placeholders/home/blocks/promo/no-content", ""), http.StatusNoContent)
	if got := ts.store.Get("promo").DisplayCount; got != 1 {
		t.Fatalf("display count: got %d, want 1", got)
	}
}

func TestRenderError_LeavesDisplayStateUntouched(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/placeholders/home/blocks/promo/error", `{"message":"template failed"}`)
	assertStatus(t, rec, http.StatusNoContent)

	st := ts.store.Get("promo")
	if st.DisplayCount != 0 || st.InteractCount != 0 {
		t.Fatalf("display state changed: %+v", st)
	}
}

func TestAction_RequiresName(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/placeholders/home/blocks/promo/action", `{"name":"  "}`)
	assertStatus(t, rec, http.StatusBadRequest)
	assertBodyContains(t, rec, "INVALID_ARGUMENT")
}

func TestAction_RejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/placeholders/home/blocks/promo/action", `{"name":"cta","extra":1}`)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestFeedback_UnknownBlock(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/placeholders/home/blocks/ghost/shown", "")
	assertStatus(t, rec, http.StatusNotFound)
	assertBodyContains(t, rec, "NOT_FOUND")
}

// --- blocks ---

func TestListBlocks_Paginated(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/blocks?limit=1", "")
	assertStatus(t, rec, http.StatusOK)

	var page PageResponse[blockView]
	decodeJSON(t, rec, &page)
	if page.Total != 2 || len(page.Items) != 1 || page.Limit != 1 {
		t.Fatalf("page: total=%d items=%d limit=%d", page.Total, len(page.Items), page.Limit)
	}
}

func TestListBlocks_FilterByPlaceholder(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/blocks?placeholder=cart", "")
	assertStatus(t, rec, http.StatusOK)

	var page PageResponse[blockView]
	decodeJSON(t, rec, &page)
	if page.Total != 1 || page.Items[0].ID != "banner" {
		t.Fatalf("page: %+v", page)
	}
}

func TestListBlocks_InvalidPagination(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/blocks?limit=-1", "")
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestGetBlock(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/blocks/banner", "")
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, `"static_content_type":"HTML"`)

	rec = ts.do(t, http.MethodGet, "/api/v1/blocks/ghost", "")
	assertStatus(t, rec, http.StatusNotFound)
}

// --- events / session ---

func TestTrackEvent_IdentifyChangesSession(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.store.SetDisplayed("banner", time.Now())

	rec := ts.do(t, http.MethodPost, "/api/v1/events",
		`{"type":"identify_customer","customer_ids":{"registered":"alice@example.com"}}`)
	assertStatus(t, rec, http.StatusOK)

	var sess engine.SessionInfo
	decodeJSON(t, rec, &sess)
	if sess.CustomerIDs["registered"] != "alice@example.com" {
		t.Fatalf("session ids: %v", sess.CustomerIDs)
	}
	if got := ts.store.Get("banner").DisplayCount; got != 0 {
		t.Fatalf("display state not cleared: count=%d", got)
	}
}

func TestTrackEvent_SessionStart(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/events", `{"type":"session_start","timestamp":"2026-03-01T10:00:00Z"}`)
	assertStatus(t, rec, http.StatusOK)

	var sess engine.SessionInfo
	decodeJSON(t, rec, &sess)
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !sess.Start.Equal(want) {
		t.Fatalf("session start: got %v, want %v", sess.Start, want)
	}
	if sess.ID == "" {
		t.Fatal("expected a session id")
	}
}

func TestTrackEvent_IdentifyRequiresIDs(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/events", `{"type":"anonymize"}`)
	assertStatus(t, rec, http.StatusBadRequest)
	assertBodyContains(t, rec, "customer_ids")
}

func TestTrackEvent_RequiresType(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodPost, "/api/v1/events", `{"name":"purchase"}`)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestTrackEvent_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.srv = NewServer(Options{
		AdminToken:      testAdminToken,
		APIMaxBodyBytes: 8,
		Engine:          ts.engine,
	})
	rec := ts.do(t, http.MethodPost, "/api/v1/events", `{"type":"session_start"}`)
	assertStatus(t, rec, http.StatusRequestEntityTooLarge)
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/session", "")
	assertStatus(t, rec, http.StatusOK)

	var sess engine.SessionInfo
	decodeJSON(t, rec, &sess)
	if sess.CustomerIDs["cookie"] != "c1" {
		t.Fatalf("session ids: %v", sess.CustomerIDs)
	}
	if sess.Fingerprint != (customer.IDs{"cookie": "c1"}).Fingerprint().Hex() {
		t.Fatalf("fingerprint: got %q", sess.Fingerprint)
	}
}

// --- reload ---

func TestReload_OK(t *testing.T) {
	ts := newTestServer(t, nil)
	assertStatus(t, ts.do(t, http.MethodPost, "/api/v1/reload", ""), http.StatusNoContent)
}

func TestReload_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t, func(context.Context) error {
		return errors.New("gateway unavailable")
	})
	rec := ts.do(t, http.MethodPost, "/api/v1/reload", "")
	assertStatus(t, rec, http.StatusBadGateway)
	assertBodyContains(t, rec, "UPSTREAM_ERROR")
}

// --- metrics ---

func TestMetricsSummary_CountsSelections(t *testing.T) {
	ts := newTestServer(t, nil)
	assertStatus(t, ts.do(t, http.MethodGet, "/api/v1/placeholders/home/block", ""), http.StatusOK)
	assertStatus(t, ts.do(t, http.MethodGet, "/api/v1/placeholders/checkout/block", ""), http.StatusOK)

	rec := ts.do(t, http.MethodGet, "/api/v1/metrics/summary", "")
	assertStatus(t, rec, http.StatusOK)

	var summary struct {
		Global struct {
			Selections int64 `json:"selections"`
			Hits       int64 `json:"hits"`
			Fetches    int64 `json:"fetches"`
		} `json:"global"`
		Placeholders map[string]struct {
			Selections int64 `json:"selections"`
		} `json:"placeholders"`
		Reloads struct {
			Reloads      int64 `json:"reloads"`
			RegistrySize int64 `json:"registry_size"`
		} `json:"reloads"`
	}
	decodeJSON(t, rec, &summary)
	if summary.Global.Selections != 2 || summary.Global.Hits != 1 {
		t.Fatalf("global: %+v", summary.Global)
	}
	if summary.Global.Fetches != 1 {
		t.Fatalf("fetches: got %d, want 1", summary.Global.Fetches)
	}
	if summary.Placeholders["home"].Selections != 1 {
		t.Fatalf("placeholders: %+v", summary.Placeholders)
	}
	if summary.Reloads.Reloads != 1 || summary.Reloads.RegistrySize != 2 {
		t.Fatalf("reloads: %+v", summary.Reloads)
	}
}

func TestMetricsRealtime(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/api/v1/metrics/realtime", "")
	assertStatus(t, rec, http.StatusOK)
	assertBodyContains(t, rec, `"items":[]`)
	assertBodyContains(t, rec, `"step_seconds":5`)

	rec = ts.do(t, http.MethodGet, "/api/v1/metrics/realtime?from=yesterday", "")
	assertStatus(t, rec, http.StatusBadRequest)
}
