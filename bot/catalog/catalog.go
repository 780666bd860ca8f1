package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Kind string

const (
	KindSingle Kind = "single"
	KindCombo  Kind = "combo"
)

type Product struct {
	ID          int
	Name        string
	Category    string
	Price       float64
	PriceLabel  string
	Cost        float64
	Description string
	Images      []string
}

// DisplayPrice prefers the free-text label ("from R$ 800,00") over the number.
func (p Product) DisplayPrice() string {
	if strings.TrimSpace(p.PriceLabel) != "" {
		return p.PriceLabel
	}
	return FormatBRL(p.Price)
}

type Category struct {
	Name     string
	Products []Product
}

// Group is one of the fixed item pools combos draw from.
type Group int

const (
	GroupLargeToys Group = iota + 1
	GroupMediumToys
	GroupSmallToys
	GroupBaby
)

type Stage struct {
	Name   string
	Groups []Group
	Limit  int
}

type Combo struct {
	Key    string
	ID     int
	Name   string
	Price  float64
	Cost   float64
	Stages []Stage
}

// Catalog is the read-only product lookup the dialogue consumes.
type Catalog interface {
	Categories() []Category
	Product(id int) (Product, bool)
	Combos() []Combo
	Combo(key string) (Combo, bool)
	StageOptions(stage Stage) []string
	WelcomeImages() []string
	MenuImages() []string
	ComboImages() []string
}

// StageChoice records the sub-items picked for one combo stage.
type StageChoice struct {
	Stage string   `json:"stage"`
	Items []string `json:"items"`
}

type CartItem struct {
	ID      int           `json:"id"`
	Name    string        `json:"name"`
	Kind    Kind          `json:"kind"`
	Price   float64       `json:"price"`
	Cost    float64       `json:"cost"`
	Choices []StageChoice `json:"choices,omitempty"`
}

func SingleItem(p Product) CartItem {
	return CartItem{
		ID:    p.ID,
		Name:  p.Name,
		Kind:  KindSingle,
		Price: p.Price,
		Cost:  p.Cost,
	}
}

func ComboItem(c Combo, choices []StageChoice) CartItem {
	return CartItem{
		ID:      c.ID,
		Name:    c.Name,
		Kind:    KindCombo,
		Price:   c.Price,
		Cost:    c.Cost,
		Choices: choices,
	}
}

func HasCombo(cart []CartItem) bool {
	for _, item := range cart {
		if item.Kind == KindCombo {
			return true
		}
	}
	return false
}

func Totals(cart []CartItem) (price float64, cost float64) {
	for _, item := range cart {
		price += item.Price
		cost += item.Cost
	}
	return price, cost
}

// EncodeSnapshot serializes the cart as stored with a reservation.
func EncodeSnapshot(cart []CartItem) (string, error) {
	if cart == nil {
		cart = []CartItem{}
	}
	raw, err := json.Marshal(cart)
	if err != nil {
		return "", fmt.Errorf("encode items snapshot: %w", err)
	}
	return string(raw), nil
}

func DecodeSnapshot(snapshot string) ([]CartItem, error) {
	if strings.TrimSpace(snapshot) == "" {
		return nil, nil
	}
	var cart []CartItem
	if err := json.Unmarshal([]byte(snapshot), &cart); err != nil {
		return nil, fmt.Errorf("decode items snapshot: %w", err)
	}
	return cart, nil
}

// DescribeItems renders a snapshot as one line per item for reports.
func DescribeItems(cart []CartItem) string {
	lines := make([]string, 0, len(cart))
	for _, item := range cart {
		if len(item.Choices) == 0 {
			lines = append(lines, item.Name)
			continue
		}
		parts := make([]string, 0, len(item.Choices))
		for _, choice := range item.Choices {
			parts = append(parts, fmt.Sprintf("%s: %s", choice.Stage, strings.Join(choice.Items, ", ")))
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", item.Name, strings.Join(parts, "; ")))
	}
	return strings.Join(lines, "\n")
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

func FormatBRL(v float64) string {
	return brl.Sprintf("R$ %.2f", v)
}
