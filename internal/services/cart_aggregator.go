package services

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/domain"
)

var (
	// ErrCartInvalidInput reports a bad variant reference or quantity.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartLineNotFound reports an update to a variant not in the cart.
	ErrCartLineNotFound = errors.New("cart: line not found")
)

// CartAggregator owns the lines of one checkout session. Lines are keyed by
// variant; every mutation bumps the generation seen in snapshots.
type CartAggregator struct {
	mu         sync.Mutex
	lines      []domain.CartLine
	generation uint64
	touched    time.Time
}

// NewCartAggregator returns an empty cart.
func NewCartAggregator() *CartAggregator {
	return &CartAggregator{}
}

// AddLine adds qty of variant, merging into an existing line for the same variant.
func (c *CartAggregator) AddLine(product domain.CatalogProduct, variant domain.CatalogVariant, qty int) error {
	ref := strings.TrimSpace(variant.ID)
	if ref == "" || qty < 1 {
		return ErrCartInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(ref); i >= 0 {
		c.lines[i].Quantity += qty
		c.bump()
		return nil
	}

	title := variant.Title
	if title == "" {
		title = product.Title
	}
	productRef := variant.ProductID
	if productRef == "" {
		productRef = product.ID
	}
	c.lines = append(c.lines, domain.CartLine{
		ProductRef:     productRef,
		VariantRef:     ref,
		Title:          title,
		UnitPrice:      variant.Price,
		CompareAtPrice: variant.CompareAtPrice,
		Quantity:       qty,
		IsQuoteOnly:    variant.IsQuoteOnly,
		WeightKg:       variant.WeightKg,
	})
	c.bump()
	return nil
}

// SetQuantity replaces a line's quantity. qty < 1 removes the line.
func (c *CartAggregator) SetQuantity(variantRef string, qty int) error {
	if qty < 1 {
		c.RemoveLine(variantRef)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(strings.TrimSpace(variantRef))
	if i < 0 {
		return ErrCartLineNotFound
	}
	if c.lines[i].Quantity != qty {
		c.lines[i].Quantity = qty
		c.bump()
	}
	return nil
}

// RemoveLine drops the line for variantRef if present.
func (c *CartAggregator) RemoveLine(variantRef string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(strings.TrimSpace(variantRef))
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.bump()
}

// Snapshot splits the cart into purchase and quote lines. Quote lines carry
// no price whatever the variant recorded.
func (c *CartAggregator) Snapshot() domain.CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := domain.CartSnapshot{Generation: c.generation}
	for _, line := range c.lines {
		if line.IsQuoteOnly {
			snap.QuoteLines = append(snap.QuoteLines, domain.QuoteLine{
				ProductRef: line.ProductRef,
				VariantRef: line.VariantRef,
				Title:      line.Title,
				Quantity:   line.Quantity,
			})
			continue
		}
		copied := line
		if line.CompareAtPrice != nil {
			v := *line.CompareAtPrice
			copied.CompareAtPrice = &v
		}
		snap.PurchaseLines = append(snap.PurchaseLines, copied)
	}
	return snap
}

// Generation returns the current mutation counter.
func (c *CartAggregator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// ClearAt empties the cart only if it is still at generation and reports
// whether it did.
func (c *CartAggregator) ClearAt(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	if len(c.lines) > 0 {
		c.lines = nil
		c.bump()
	}
	return true
}

func (c *CartAggregator) indexOf(ref string) int {
	for i := range c.lines {
		if c.lines[i].VariantRef == ref {
			return i
		}
	}
	return -1
}

func (c *CartAggregator) bump() {
	c.generation++
}

// CartSessions holds one CartAggregator per checkout session handle.
type CartSessions struct {
	mu      sync.Mutex
	carts   map[string]*CartAggregator
	idleTTL time.Duration
	now     func() time.Time
}

// NewCartSessions evicts carts idle for longer than idleTTL on Sweep.
func NewCartSessions(idleTTL time.Duration, clock func() time.Time) *CartSessions {
	if clock == nil {
		clock = time.Now
	}
	return &CartSessions{carts: make(map[string]*CartAggregator), idleTTL: idleTTL, now: clock}
}

// Get returns the cart for a session, creating it on first use.
func (s *CartSessions) Get(tenantID, sessionID string) (*CartAggregator, error) {
	key, err := sessionKey(tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[key]
	if !ok {
		cart = NewCartAggregator()
		s.carts[key] = cart
	}
	cart.mu.Lock()
	cart.touched = s.now()
	cart.mu.Unlock()
	return cart, nil
}

// Lookup returns an existing cart without creating one.
func (s *CartSessions) Lookup(tenantID, sessionID string) (*CartAggregator, bool) {
	key, err := sessionKey(tenantID, sessionID)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[key]
	return cart, ok
}

// Sweep drops carts not touched within the idle TTL and returns how many.
func (s *CartSessions) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, cart := range s.carts {
		cart.mu.Lock()
		idle := cart.touched.Before(cutoff)
		cart.mu.Unlock()
		if idle {
			delete(s.carts, key)
			removed++
		}
	}
	return removed
}

func sessionKey(tenantID, sessionID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	sessionID = strings.TrimSpace(sessionID)
	if tenantID == "" || sessionID == "" {
		return "", ErrCartInvalidInput
	}
	return tenantID + "/" + sessionID, nil
}
