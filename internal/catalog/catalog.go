package catalog

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"strconv"
	"strings"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/logging"
)

const delimiter = ","

// Parse reads the delimited product source. The first line is a header.
// The price is taken after the last delimiter because names may contain it.
// Lines without a usable name or price are dropped.
func Parse(raw string) []domain.Product {
	products, skipped := parseLines(raw)
	if skipped > 0 {
		logging.Debug().Int("skipped", skipped).Int("parsed", len(products)).Msg("catalog lines skipped")
	}
	return products
}

func parseLines(raw string) ([]domain.Product, int) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	products := make([]domain.Product, 0, len(lines))
	skipped := 0

	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		product, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		products = append(products, product)
	}
	return products, skipped
}

func parseLine(line string) (domain.Product, bool) {
	idx := strings.LastIndex(line, delimiter)
	if idx == -1 {
		return domain.Product{}, false
	}

	name := strings.TrimSpace(line[:idx])
	if name == "" {
		return domain.Product{}, false
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(line[idx+len(delimiter):]), 64)
	if err != nil {
		return domain.Product{}, false
	}
	cents, ok := domain.PriceToCents(price)
	if !ok {
		return domain.Product{}, false
	}
	return domain.Product{Name: name, PriceCents: cents}, true
}

// UniqueView keeps the first product for each case-folded name, in load order.
func UniqueView(products []domain.Product) []domain.Product {
	seen := make(map[string]struct{}, len(products))
	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		key := domain.FoldName(p.Name)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, p)
	}
	return result
}

// Catalog is an immutable snapshot of the loaded product list.
type Catalog struct {
	all         []domain.Product
	unique      []domain.Product
	index       map[string]int
	fingerprint string
}

func New(products []domain.Product) *Catalog {
	all := make([]domain.Product, len(products))
	copy(all, products)

	index := make(map[string]int, len(all))
	for i, p := range all {
		key := domain.FoldName(p.Name)
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	return &Catalog{
		all:         all,
		unique:      UniqueView(all),
		index:       index,
		fingerprint: fingerprint(all),
	}
}

func fingerprint(products []domain.Product) string {
	h := sha1.New()
	for _, p := range products {
		io.WriteString(h, p.Name)
		io.WriteString(h, "\x1f")
		io.WriteString(h, strconv.FormatInt(p.PriceCents, 10))
		io.WriteString(h, "\x1e")
	}
	return hex.EncodeToString(h.Sum(nil))
}

func Empty() *Catalog {
	return New(nil)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.all)
}

// Fingerprint identifies the product list by content, names and prices in order.
func (c *Catalog) Fingerprint() string {
	if c == nil {
		return ""
	}
	return c.fingerprint
}

func (c *Catalog) All() []domain.Product {
	if c == nil {
		return nil
	}
	return append([]domain.Product(nil), c.all...)
}

func (c *Catalog) Unique() []domain.Product {
	if c == nil {
		return nil
	}
	return append([]domain.Product(nil), c.unique...)
}

// FindByName matches case-insensitively against the full list; first match wins.
func (c *Catalog) FindByName(name string) (domain.Product, bool) {
	if c == nil {
		return domain.Product{}, false
	}
	i, ok := c.index[domain.FoldName(name)]
	if !ok {
		return domain.Product{}, false
	}
	return c.all[i], true
}

// Select projects the catalog for display: the unique view when uniqueOnly is
// set, narrowed by a case-insensitive substring match on query.
func (c *Catalog) Select(query string, uniqueOnly bool) []domain.Product {
	if c == nil {
		return []domain.Product{}
	}
	source := c.all
	if uniqueOnly {
		source = c.unique
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	result := make([]domain.Product, 0, len(source))
	for _, p := range source {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		result = append(result, p)
	}
	return result
}
