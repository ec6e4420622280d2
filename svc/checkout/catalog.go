package checkout

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	purchase "github.com/dmitrymomot/checkoutkit/pkg/checkout"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidCatalog  = errors.New("invalid catalog")
)

// Catalog resolves category pricing.
type Catalog interface {
	Pricing(ctx context.Context, categoryID string) (purchase.CategoryPricing, error)
	Categories(ctx context.Context) ([]purchase.CategoryPricing, error)
}

type inMemCatalog struct {
	mu     sync.RWMutex
	prices map[string]purchase.CategoryPricing
}

// NewInMemCatalog returns a Catalog over the given pricing.
// Panics when a pricing entry is invalid.
func NewInMemCatalog(prices ...purchase.CategoryPricing) Catalog {
	m := make(map[string]purchase.CategoryPricing, len(prices))
	for _, p := range prices {
		if err := p.Validate(); err != nil {
			panic(fmt.Sprintf("catalog: category %q: %v", p.CategoryID, err))
		}
		m[p.CategoryID] = p
	}
	return &inMemCatalog{prices: m}
}

func (c *inMemCatalog) Pricing(_ context.Context, categoryID string) (purchase.CategoryPricing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[categoryID]
	if !ok {
		return purchase.CategoryPricing{}, ErrUnknownCategory
	}
	return p, nil
}

func (c *inMemCatalog) Categories(_ context.Context) ([]purchase.CategoryPricing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]purchase.CategoryPricing, 0, len(c.prices))
	for _, p := range c.prices {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b purchase.CategoryPricing) int {
		return strings.Compare(a.CategoryID, b.CategoryID)
	})
	return out, nil
}

type catalogFile struct {
	Currency   string          `yaml:"currency"`
	Categories []catalogRecord `yaml:"categories"`
}

type catalogRecord struct {
	ID       string `yaml:"id"`
	Monthly  int64  `yaml:"monthly"`
	Yearly   int64  `yaml:"yearly"`
	Currency string `yaml:"currency"`
}

// ParseCatalog reads a YAML catalog. Prices are in minor units:
//
//	currency: INR
//	categories:
//	  - id: class_10
//	    monthly: 49900
//	    yearly: 499000
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidCatalog)
	}

	prices := make([]purchase.CategoryPricing, 0, len(f.Categories))
	seen := make(map[string]bool, len(f.Categories))
	for _, r := range f.Categories {
		p := purchase.CategoryPricing{
			CategoryID:   strings.TrimSpace(r.ID),
			MonthlyPrice: r.Monthly,
			YearlyPrice:  r.Yearly,
			Currency:     strings.ToUpper(cmp.Or(r.Currency, f.Currency)),
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: category %q: %w", ErrInvalidCatalog, r.ID, err)
		}
		if p.Currency == "" {
			return nil, fmt.Errorf("%w: category %q has no currency", ErrInvalidCatalog, r.ID)
		}
		if seen[p.CategoryID] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, r.ID)
		}
		seen[p.CategoryID] = true
		prices = append(prices, p)
	}
	return NewInMemCatalog(prices...), nil
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return ParseCatalog(data)
}
