package registry

import (
	"testing"

	"github.com/Resinat/Inlay/internal/block"
)

func testBlocks() []*block.Block {
	return []*block.Block{
		{ID: "a", Placeholders: []string{"home"}},
		{ID: "b", Placeholders: []string{"home", "cart"}},
		{ID: "c", Placeholders: []string{"cart"}},
	}
}

func TestRegistry_ReplaceAndIndex(t *testing.T) {
	r := newRegistry()
	r.Replace(testBlocks())

	if r.Len() != 3 {
		t.Fatalf("expected 3 blocks, got %d", r.Len())
	}
	home := r.ForPlaceholder("home")
	if len(home) != 2 || home[0].ID != "a" || home[1].ID != "b" {
		t.Fatalf("unexpected home blocks: %+v", home)
	}
	cart := r.ForPlaceholder("cart")
	if len(cart) != 2 || cart[0].ID != "b" || cart[1].ID != "c" {
		t.Fatalf("unexpected cart blocks: %+v", cart)
	}
	if got := r.ForPlaceholder("checkout"); got != nil {
		t.Fatalf("expected no checkout blocks, got %+v", got)
	}
	if b, ok := r.Find("c"); !ok || b.ID != "c" {
		t.Fatalf("Find(c) = %v, %v", b, ok)
	}
}

func TestRegistry_ReplaceDropsOldIndex(t *testing.T) {
	r := newRegistry()
	r.Replace(testBlocks())
	r.Replace([]*block.Block{{ID: "z", Placeholders: []string{"footer"}}})

	if len(r.ForPlaceholder("home")) != 0 {
		t.Fatal("old placeholder index survived replace")
	}
	if _, ok := r.Find("a"); ok {
		t.Fatal("old block survived replace")
	}
	if len(r.ForPlaceholder("footer")) != 1 {
		t.Fatal("new placeholder not indexed")
	}
}

func TestRegistry_ForPlaceholderReturnsLiveBlocks(t *testing.T) {
	r := newRegistry()
	r.Replace(testBlocks())
	r.ForPlaceholder("home")[0].Name = "mutated"
	if b, _ := r.Find("a"); b.Name != "mutated" {
		t.Fatal("ForPlaceholder should return live pointers")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := newRegistry()
	r.Replace(testBlocks())
	r.Clear()
	if r.Len() != 0 || len(r.ForPlaceholder("home")) != 0 {
		t.Fatal("expected empty registry after clear")
	}
}
