package catalog

import (
	"reflect"
	"strings"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	cart := []CartItem{
		{ID: 24, Name: "Castelinho 3 em 1", Kind: KindSingle, Price: 1000},
		{ID: 101, Name: "Combo 1 (custom)", Kind: KindCombo, Price: 1400, Cost: 120.5, Choices: []StageChoice{
			{Stage: "Large toys / Baby kit", Items: []string{"Balanço", "Pesca", "Cozinha", "Assento Dino"}},
			{Stage: "Medium toys", Items: []string{"Biblioteca", "Motoneta", "Amarelinha"}},
		}},
	}

	snapshot, err := EncodeSnapshot(cart)
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}
	got, err := DecodeSnapshot(snapshot)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if !reflect.DeepEqual(got, cart) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, cart)
	}
}

func TestStaticCatalogLookups(t *testing.T) {
	t.Parallel()

	c := NewStatic("https://media.example.com/")

	p, ok := c.Product(24)
	if !ok || p.Name != "Castelinho 3 em 1" {
		t.Fatalf("Product(24) = %+v, %v", p, ok)
	}
	if len(p.Images) != 1 || p.Images[0] != "https://media.example.com/image/Avulsos/Castelinho3em1.png" {
		t.Fatalf("unexpected images %v", p.Images)
	}
	if _, ok := c.Product(999); ok {
		t.Fatal("Product(999) should not exist")
	}

	if got := len(c.Combos()); got != 3 {
		t.Fatalf("len(Combos()) = %d, want 3", got)
	}
	combo, ok := c.Combo("1")
	if !ok || combo.ID != 101 || len(combo.Stages) != 3 {
		t.Fatalf("Combo(1) = %+v, %v", combo, ok)
	}

	opts := c.StageOptions(combo.Stages[0])
	if len(opts) != 22+12 {
		t.Fatalf("stage 1 options = %d, want 34", len(opts))
	}
	if opts[0] != "Pula Pula P" || opts[22] != "Cadeira 3 em 1 (Moisés/Berço)" {
		t.Fatalf("stage options not concatenated in group order: %q, %q", opts[0], opts[22])
	}
}

func TestStaticCatalogWithoutMediaBase(t *testing.T) {
	t.Parallel()

	c := NewStatic("")
	if imgs := c.MenuImages(); len(imgs) != 0 {
		t.Fatalf("MenuImages() = %v, want none", imgs)
	}
	p, ok := c.Product(24)
	if !ok {
		t.Fatal("Product(24) not found")
	}
	if len(p.Images) != 0 {
		t.Fatalf("Product(24).Images = %q, want none", p.Images)
	}
	if imgs := c.ComboImages(); len(imgs) != 0 {
		t.Fatalf("ComboImages() = %q, want none", imgs)
	}
}

func TestHasComboAndTotals(t *testing.T) {
	t.Parallel()

	cart := []CartItem{
		{ID: 6, Kind: KindSingle, Price: 450, Cost: 50},
		{ID: 14, Kind: KindSingle, Price: 130, Cost: 10},
	}
	if HasCombo(cart) {
		t.Fatal("HasCombo() = true for singles")
	}
	price, cost := Totals(cart)
	if price != 580 || cost != 60 {
		t.Fatalf("Totals() = %v, %v", price, cost)
	}
	cart = append(cart, CartItem{ID: 102, Kind: KindCombo})
	if !HasCombo(cart) {
		t.Fatal("HasCombo() = false with a combo")
	}
}

func TestDescribeItems(t *testing.T) {
	t.Parallel()

	out := DescribeItems([]CartItem{
		{Name: "Cama Elástica"},
		{Name: "Combo 2 (custom)", Choices: []StageChoice{{Stage: "Small toys", Items: []string{"Bloco Cidade"}}}},
	})
	if !strings.Contains(out, "Cama Elástica\n") || !strings.Contains(out, "Small toys: Bloco Cidade") {
		t.Fatalf("DescribeItems() = %q", out)
	}
}
