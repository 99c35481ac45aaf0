package cart

import (
	"context"

	domcart "github.com/bookwell/cartsync/internal/domain/cart"
)

// RemoteStore is the client-side contract of the remote booking API that owns
// every cart record. The engine never invents ids or merge policy; the remote
// side is the authority and the mirror follows it.
type RemoteStore interface {
	// FetchOrCreate returns the owner's cart, creating it when absent.
	// The remote side guarantees at most one cart per owner.
	FetchOrCreate(ctx context.Context, ownerID string) (*domcart.Cart, error)

	// AddItem appends a line or merges it into an existing one; the returned
	// line is the server's canonical version either way.
	AddItem(ctx context.Context, cartID, serviceID string, quantity int) (*domcart.LineItem, error)

	// UpdateItemQuantity patches a line's quantity and returns the canonical line.
	UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domcart.LineItem, error)

	// RemoveItem deletes a line.
	RemoveItem(ctx context.Context, cartID, itemID string) error

	// ListCarts returns every cart record in the system (administrative).
	ListCarts(ctx context.Context) ([]*domcart.Cart, error)
}
