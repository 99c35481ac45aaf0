package cart

import "time"

// ChangedEvent is published whenever a cart mirror advances or settles a
// rollback. UI layers subscribe to it instead of polling the aggregate.
type ChangedEvent struct {
	CartID     string
	OwnerID    string
	Op         Op
	Totals     Totals
	OccurredAt time.Time
}

func (ChangedEvent) EventName() string { return "cart.changed" }

func NewChangedEvent(c *Cart, op Op) ChangedEvent {
	return ChangedEvent{
		CartID:     c.ID,
		OwnerID:    c.OwnerID,
		Op:         op,
		Totals:     c.Totals,
		OccurredAt: time.Now().UTC(),
	}
}
