package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domcart "github.com/bookwell/cartsync/internal/domain/cart"
	domevent "github.com/bookwell/cartsync/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := NewBus(nil)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	var mu sync.Mutex
	var got []domcart.ChangedEvent
	b.Subscribe("cart.changed", func(_ context.Context, e domevent.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(domcart.ChangedEvent))
		return nil
	})

	ev := domcart.ChangedEvent{CartID: "cart-1", Op: domcart.OpAdd}
	require.NoError(t, b.Publish(context.Background(), ev))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "cart-1", got[0].CartID)
	mu.Unlock()
}

func TestFanoutToAllSubscribers(t *testing.T) {
	b := NewBus(nil)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	var mu sync.Mutex
	seen := 0
	for i := 0; i < 3; i++ {
		b.Subscribe("cart.changed", func(context.Context, domevent.Event) error {
			mu.Lock()
			seen++
			mu.Unlock()
			return nil
		})
	}

	require.NoError(t, b.Publish(context.Background(), domcart.ChangedEvent{CartID: "cart-1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == 3
	}, time.Second, 5*time.Millisecond)
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	b := NewBus(nil)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	b.Subscribe("cart.changed", func(context.Context, domevent.Event) error {
		panic("handler bug")
	})

	var mu sync.Mutex
	delivered := 0
	b.Subscribe("cart.changed", func(context.Context, domevent.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), domcart.ChangedEvent{CartID: "cart-1"}))
	require.NoError(t, b.Publish(context.Background(), domcart.ChangedEvent{CartID: "cart-2"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 2
	}, time.Second, 5*time.Millisecond)
}

func TestHandlerErrorIsSwallowed(t *testing.T) {
	b := NewBus(nil)
	b.Start(context.Background())
	defer b.Stop(context.Background())

	var mu sync.Mutex
	calls := 0
	b.Subscribe("cart.changed", func(context.Context, domevent.Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("subscriber failed")
	})

	require.NoError(t, b.Publish(context.Background(), domcart.ChangedEvent{CartID: "cart-1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublishNilEventIsNoop(t *testing.T) {
	b := NewBus(nil)
	assert.NoError(t, b.Publish(context.Background(), nil))
}
