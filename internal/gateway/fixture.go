package gateway

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/customer"
)

type fixtureDocument struct {
	Blocks       []wireBlock            `yaml:"blocks"`
	Personalized map[string]wirePayload `yaml:"personalized"`
}

// FixtureGateway serves blocks and personalization from a YAML document.
// Every customer sees the same personalization.
//
//	blocks:
//	  - id: promo
//	    placeholders: [home]
//	    load_priority: 10
//	    frequency: always
//	personalized:
//	  promo:
//	    status: ok
//	    ttl_seconds: 60
//	    content_type: html
//	    content: {html: "<p>hi</p>"}
type FixtureGateway struct {
	blocks       []wireBlock
	personalized map[string]wirePayload
}

// LoadFixture reads a fixture document from path.
func LoadFixture(path string) (*FixtureGateway, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %q: %w", path, err)
	}
	return ParseFixture(data)
}

// ParseFixture parses a fixture document.
func ParseFixture(data []byte) (*FixtureGateway, error) {
	var doc fixtureDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Blocks))
	for i, b := range doc.Blocks {
		if b.ID == "" {
			return nil, fmt.Errorf("parse fixture: blocks[%d]: missing id", i)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("parse fixture: blocks[%d]: duplicate id %q", i, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return &FixtureGateway{blocks: doc.Blocks, personalized: doc.Personalized}, nil
}

func (g *FixtureGateway) FetchStaticBlocks(ctx context.Context) ([]*block.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Kind: KindTransport, Op: opStaticBlocks, Err: err}
	}
	blocks := convertBlocks(g.blocks)
	for i, b := range blocks {
		blocks[i] = b.Clone()
	}
	return blocks, nil
}

func (g *FixtureGateway) FetchPersonalized(ctx context.Context, _ customer.IDs, blockIDs []string) ([]block.Payload, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Kind: KindTransport, Op: opPersonalized, Err: err}
	}
	out := make([]block.Payload, 0, len(blockIDs))
	for _, id := range blockIDs {
		w, ok := g.personalized[id]
		if !ok {
			continue
		}
		p := w.toPayload(id)
		out = append(out, *p.Clone())
	}
	return out, nil
}
