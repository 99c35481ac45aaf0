package cart

import (
	"errors"

	"github.com/bookwell/cartsync/internal/domain/catalog"
)

var (
	ErrItemNotFound    = errors.New("cart: line item not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be at least one")
	ErrLineBusy        = errors.New("cart: line item has an operation in flight")
)

// LineItem is one entry of a cart mirror. The catalog attributes are a cached
// snapshot taken at last resolution time, not a live lookup.
type LineItem struct {
	ID        string
	ServiceID string
	Quantity  int
	Snapshot  catalog.Snapshot

	state opState
}

// NewLineItem builds a line item. Lines with quantity below one must not
// exist; callers delete instead.
func NewLineItem(id, serviceID string, quantity int, snap catalog.Snapshot) (*LineItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	return &LineItem{
		ID:        id,
		ServiceID: serviceID,
		Quantity:  quantity,
		Snapshot:  snap,
	}, nil
}

// Clone returns a copy of the line safe to hand to readers.
func (li *LineItem) Clone() *LineItem {
	c := *li
	return &c
}

// Totals are derived from the current items, never stored independently.
type Totals struct {
	TotalPrice           int64
	TotalDurationSeconds int64
	ItemCount            int
	HasUnavailable       bool
}

// Cart is the in-memory mirror of one remote cart record.
type Cart struct {
	ID      string
	OwnerID string
	Items   []*LineItem
	Totals  Totals
}

func New(id, ownerID string) *Cart {
	return &Cart{ID: id, OwnerID: ownerID}
}

// ComputeTotals derives totals from a set of line items. It performs no I/O,
// cannot fail, and uses the cached per-item snapshots only. An unavailable
// item still contributes to price and duration but flags the cart.
func ComputeTotals(items []*LineItem) Totals {
	t := Totals{ItemCount: len(items)}
	for _, li := range items {
		qty := int64(li.Quantity)
		t.TotalPrice += li.Snapshot.UnitPrice * qty
		t.TotalDurationSeconds += li.Snapshot.DurationSeconds * qty
		if !li.Snapshot.Available {
			t.HasUnavailable = true
		}
	}
	return t
}

// Recompute refreshes the derived totals. It must run after every mutation
// before the cart is considered consistent.
func (c *Cart) Recompute() {
	c.Totals = ComputeTotals(c.Items)
}

// Find returns the line with the given id and its position.
func (c *Cart) Find(itemID string) (*LineItem, int, bool) {
	for i, li := range c.Items {
		if li.ID == itemID {
			return li, i, true
		}
	}
	return nil, -1, false
}

// FindByService returns the line referencing the given catalog entry.
func (c *Cart) FindByService(serviceID string) (*LineItem, int, bool) {
	for i, li := range c.Items {
		if li.ServiceID == serviceID {
			return li, i, true
		}
	}
	return nil, -1, false
}

// Upsert installs the server's canonical version of a line. If a line for the
// same service already exists it is replaced in place (the remote store
// decides whether a duplicate service merges); otherwise the line is
// appended. Insertion order is preserved for stable display.
func (c *Cart) Upsert(li *LineItem) {
	if _, i, ok := c.Find(li.ID); ok {
		c.Items[i] = li
		return
	}
	if _, i, ok := c.FindByService(li.ServiceID); ok {
		c.Items[i] = li
		return
	}
	c.Items = append(c.Items, li)
}

// Remove deletes a line and reports the removed line and its prior position
// so a failed remote delete can restore it.
func (c *Cart) Remove(itemID string) (*LineItem, int, error) {
	li, i, ok := c.Find(itemID)
	if !ok {
		return nil, -1, ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return li, i, nil
}

// InsertAt restores a line at a given position. Positions past the end append.
func (c *Cart) InsertAt(li *LineItem, pos int) {
	if pos < 0 || pos >= len(c.Items) {
		c.Items = append(c.Items, li)
		return
	}
	c.Items = append(c.Items[:pos], append([]*LineItem{li}, c.Items[pos:]...)...)
}

// Clone returns a deep copy safe to hand to readers.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := &Cart{ID: c.ID, OwnerID: c.OwnerID, Totals: c.Totals}
	if c.Items != nil {
		out.Items = make([]*LineItem, len(c.Items))
		for i, li := range c.Items {
			out.Items[i] = li.Clone()
		}
	}
	return out
}
