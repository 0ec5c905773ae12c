package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/netutil"
)

// envelope is the response wrapper of the personalization API.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    []T    `json:"data"`
	Error   string `json:"error"`
}

type personalizationRequest struct {
	CustomerIDs     customer.IDs `json:"customer_ids"`
	ContentBlockIDs []string     `json:"content_block_ids"`
}

// HTTPGateway talks to the personalization API of one project.
type HTTPGateway struct {
	doer     netutil.Doer
	endpoint string
}

// NewHTTPGateway creates a gateway for project under baseURL.
func NewHTTPGateway(doer netutil.Doer, baseURL, project string) *HTTPGateway {
	endpoint := strings.TrimRight(baseURL, "/") + "/webxp/s/" + url.PathEscape(project) + "/inappcontentblocks?v=2"
	return &HTTPGateway{doer: doer, endpoint: endpoint}
}

func (g *HTTPGateway) FetchStaticBlocks(ctx context.Context) ([]*block.Block, error) {
	body, err := g.doer.Do(ctx, netutil.Request{Method: http.MethodGet, URL: g.endpoint})
	if err != nil {
		return nil, transportError(opStaticBlocks, err)
	}
	data, err := decodeEnvelope[wireBlock](opStaticBlocks, body)
	if err != nil {
		return nil, err
	}
	return convertBlocks(data), nil
}

func (g *HTTPGateway) FetchPersonalized(ctx context.Context, ids customer.IDs, blockIDs []string) ([]block.Payload, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	reqBody, err := json.Marshal(personalizationRequest{CustomerIDs: ids, ContentBlockIDs: blockIDs})
	if err != nil {
		return nil, &FetchError{Kind: KindDecode, Op: opPersonalized, Err: err}
	}
	body, err := g.doer.Do(ctx, netutil.Request{Method: http.MethodPost, URL: g.endpoint, Body: reqBody})
	if err != nil {
		return nil, transportError(opPersonalized, err)
	}
	data, err := decodeEnvelope[wirePayload](opPersonalized, body)
	if err != nil {
		return nil, err
	}

	out := make([]block.Payload, 0, len(data))
	for _, w := range data {
		if w.ID == "" {
			continue
		}
		out = append(out, w.toPayload(w.ID))
	}
	return out, nil
}

func transportError(op string, err error) error {
	var statusErr *netutil.HTTPStatusError
	if errors.As(err, &statusErr) {
		return &FetchError{Kind: KindServer, Op: op, Err: err}
	}
	return &FetchError{Kind: KindTransport, Op: op, Err: err}
}

func decodeEnvelope[T any](op string, body []byte) ([]T, error) {
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &FetchError{Kind: KindDecode, Op: op, Err: err}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request was not successful"
		}
		return nil, &FetchError{Kind: KindServer, Op: op, Err: errors.New(msg)}
	}
	return env.Data, nil
}
