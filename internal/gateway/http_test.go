package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/netutil"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPGateway(netutil.NewClient(time.Second, "inlay-test", nil), srv.URL+"/", "proj 1")
}

func TestHTTPGateway_FetchStaticBlocks(t *testing.T) {
	var gotPath, gotQuery string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method: got %s, want GET", r.Method)
		}
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"success":true,"data":[
			{"id":"b1","name":"Banner","placeholders":["home"],"load_priority":10,"frequency":"only_once","content_type":"html","content":{"html":"<p>x</p>"}},
			{"id":"","name":"broken"},
			{"id":"b2","placeholders":["home","cart"],"frequency":"bogus","date_filter":{"enabled":true,"from_date":100}}
		]}`)
	})

	blocks, err := g.FetchStaticBlocks(context.Background())
	if err != nil {
		t.Fatalf("FetchStaticBlocks: %v", err)
	}
	if gotPath != "/webxp/s/proj%201/inappcontentblocks" || gotQuery != "v=2" {
		t.Fatalf("unexpected request target: path=%q query=%q", gotPath, gotQuery)
	}
	if len(blocks) != 2 || blocks[0].ID != "b1" || blocks[1].ID != "b2" {
		t.Fatalf("expected [b1 b2] in server order, got %+v", blocks)
	}

	b1 := blocks[0]
	if p, ok := b1.PriorityValue(); !ok || p != 10 {
		t.Fatalf("b1 priority: got %d/%v", p, ok)
	}
	if b1.FrequencyPolicy != block.FrequencyOnlyOnce || b1.StaticContentType != block.ContentTypeHTML {
		t.Fatalf("b1 rules: %s %s", b1.FrequencyPolicy, b1.StaticContentType)
	}
	if b1.HTML() != "<p>x</p>" {
		t.Fatalf("b1 html: %q", b1.HTML())
	}

	b2 := blocks[1]
	if _, ok := b2.PriorityValue(); ok {
		t.Fatal("b2 should have no priority")
	}
	if b2.FrequencyPolicy != block.FrequencyUnknown || b2.StaticContentType != block.ContentTypeNotDefined {
		t.Fatalf("b2 rules: %s %s", b2.FrequencyPolicy, b2.StaticContentType)
	}
	if b2.DateFilter == nil || !b2.DateFilter.Enabled || *b2.DateFilter.From != 100 || b2.DateFilter.To != nil {
		t.Fatalf("b2 date filter: %+v", b2.DateFilter)
	}
}

func TestHTTPGateway_FetchPersonalized(t *testing.T) {
	var req personalizationRequest
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"success":true,"data":[
			{"id":"b1","status":"ok","ttl_seconds":60,"content_type":"html","has_tracking_consent":false,"content":{"html":"hi"}},
			{"id":"b2","status":"filter_not_matched","ttl_seconds":-4}
		]}`)
	})

	payloads, err := g.FetchPersonalized(context.Background(), customer.IDs{"registered": "alice"}, []string{"b1", "b2", "b3"})
	if err != nil {
		t.Fatalf("FetchPersonalized: %v", err)
	}
	if req.CustomerIDs["registered"] != "alice" || len(req.ContentBlockIDs) != 3 {
		t.Fatalf("unexpected request body: %+v", req)
	}
	if len(payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(payloads))
	}
	p1 := payloads[0]
	if p1.BlockID != "b1" || p1.Status != block.StatusOK || p1.TTLSeconds != 60 ||
		p1.ContentType != block.ContentTypeHTML || p1.TrackingConsent || p1.Content["html"] != "hi" {
		t.Fatalf("unexpected b1 payload: %+v", p1)
	}
	p2 := payloads[1]
	if p2.Status != block.StatusNotMatched || p2.TTLSeconds != 0 || !p2.TrackingConsent ||
		p2.ContentType != block.ContentTypeNotDefined {
		t.Fatalf("unexpected b2 payload: %+v", p2)
	}
}

func TestHTTPGateway_EmptyBlockIDsShortCircuits(t *testing.T) {
	var calls atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	payloads, err := g.FetchPersonalized(context.Background(), customer.IDs{"cookie": "c"}, nil)
	if err != nil || len(payloads) != 0 {
		t.Fatalf("expected empty success, got %v, %v", payloads, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request, got %d", calls.Load())
	}
}

func TestHTTPGateway_ErrorKinds(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		kind    Kind
	}{
		{
			name:    "status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			kind:    KindServer,
		},
		{
			name:    "unsuccessful",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"success":false,"error":"bad token"}`) },
			kind:    KindServer,
		},
		{
			name:    "malformed",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"success":`) },
			kind:    KindDecode,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGateway(t, tc.handler)
			_, err := g.FetchStaticBlocks(context.Background())
			if !IsKind(err, tc.kind) {
				t.Fatalf("expected %s error, got %v", tc.kind, err)
			}
		})
	}
}

func TestHTTPGateway_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewHTTPGateway(netutil.NewClient(time.Second, "", nil), url, "p")
	_, err := g.FetchStaticBlocks(context.Background())
	if !IsKind(err, KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
