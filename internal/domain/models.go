package domain

import (
	"fmt"
	"math"
	"strings"
)

type Product struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func (p Product) Price() float64 {
	return CentsToPrice(p.PriceCents)
}

// AssociationRule suggests Suggest when every item of Input is in the cart.
type AssociationRule struct {
	Input           []string `json:"input"`
	Suggest         string   `json:"suggest"`
	ExpectedUtility float64  `json:"expected_utility"`
}

// CartItem is a snapshot of a product at the time it was added, not a reference.
type CartItem struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func (c CartItem) Price() float64 {
	return CentsToPrice(c.PriceCents)
}

func CartItemFromProduct(p Product) CartItem {
	return CartItem{Name: p.Name, PriceCents: p.PriceCents}
}

type Suggestion struct {
	Suggest         string   `json:"suggest"`
	PriceCents      int64    `json:"price_cents"`
	Price           float64  `json:"price"`
	ExpectedUtility float64  `json:"expected_utility"`
	BasedOn         []string `json:"based_on"`
}

type ProductView struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
}

type ProductListResponse struct {
	Products []ProductView `json:"products"`
	Count    int           `json:"count"`
}

type CartLine struct {
	Index        int     `json:"index"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	PriceDisplay string  `json:"price_display"`
}

type CartView struct {
	Items        []CartLine `json:"items"`
	Count        int        `json:"count"`
	Total        float64    `json:"total"`
	TotalDisplay string     `json:"total_display"`
	Message      string     `json:"message,omitempty"`
}

type AddToCartRequest struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

type RecommendationResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
	Generation  uint64       `json:"generation"`
}

type CheckoutResponse struct {
	ItemCount    int     `json:"item_count"`
	Total        float64 `json:"total"`
	TotalDisplay string  `json:"total_display"`
	Message      string  `json:"message"`
}

type SessionResponse struct {
	SessionToken string `json:"session_token"`
	SessionID    string `json:"session_id"`
	ExpiresAt    string `json:"expires_at"`
}

type ReloadResponse struct {
	Products   int    `json:"products"`
	Rules      int    `json:"rules"`
	Generation uint64 `json:"generation"`
	LoadedAt   string `json:"loaded_at"`
}

// FoldName is the case-folded identity used for every name comparison.
func FoldName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// PriceToCents converts a decimal price to whole cents, rounding half away from zero.
// ok is false for negative, NaN or infinite input.
func PriceToCents(price float64) (int64, bool) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, false
	}
	return int64(math.Round(price * 100)), true
}

func CentsToPrice(cents int64) float64 {
	return float64(cents) / 100
}

// FormatPrice renders cents with a fixed two decimal places.
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s£%d.%02d", sign, cents/100, cents%100)
}
