package cart

import (
	"errors"
	"fmt"

	domcart "github.com/bookwell/cartsync/internal/domain/cart"
)

// ErrCartNotResolved means no cart mirror exists locally yet; callers retry
// after CreateOrGetCart succeeds.
var ErrCartNotResolved = errors.New("cartsync: cart not resolved")

// SyncError reports a failed remote synchronization attempt. The mirror has
// already been rolled back (or never advanced, for non-optimistic adds) when
// it is returned, so callers only decide whether to offer a retry.
type SyncError struct {
	Op     domcart.Op
	CartID string
	ItemID string
	Err    error
}

func (e *SyncError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("cartsync: %s cart=%s item=%s: %v", e.Op, e.CartID, e.ItemID, e.Err)
	}
	return fmt.Sprintf("cartsync: %s cart=%s: %v", e.Op, e.CartID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func syncErr(op domcart.Op, cartID, itemID string, err error) *SyncError {
	return &SyncError{Op: op, CartID: cartID, ItemID: itemID, Err: err}
}
