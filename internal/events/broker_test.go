package events

import (
	"testing"
	"time"

	"github.com/hyperplane-db/hyperplane/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberReceivesPublishedEvent(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	entity := types.NewEntityName("shop", "products")
	nv := types.NewLong(7)
	b.Publish(Event{Kind: Insert, Entity: entity, TupleID: 1, New: &nv})

	select {
	case ev := <-sub:
		assert.Equal(t, Insert, ev.Kind)
		assert.Equal(t, int64(1), ev.TupleID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, ok := <-sub
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	entity := types.NewEntityName("shop", "products")
	b.Publish(Event{Kind: Delete, Entity: entity, TupleID: 9})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, Delete, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	require.True(t, true)
}
