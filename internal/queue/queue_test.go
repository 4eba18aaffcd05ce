package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OrdersByEffectiveStartTimeThenID(t *testing.T) {
	q := New()
	q.Put(Item{EffectiveStartTime: 30, ID: "b"})
	q.Put(Item{EffectiveStartTime: 10, ID: "z"})
	q.Put(Item{EffectiveStartTime: 10, ID: "a"})
	q.Put(Item{EffectiveStartTime: 20, ID: "m"})

	var popped []string
	now := time.Unix(1000, 0)
	for {
		item, ok := q.TryPop(now)
		if !ok {
			break
		}
		popped = append(popped, item.ID)
	}

	assert.Equal(t, []string{"a", "z", "m", "b"}, popped)
	assert.True(t, q.Empty())
}

func TestQueue_TryPopRespectsEffectiveStartTime(t *testing.T) {
	q := New()
	q.Put(Item{EffectiveStartTime: 2000, ID: "future"})

	_, ok := q.TryPop(time.Unix(1000, 0))
	assert.False(t, ok, "an item whose effective_start_time has not arrived must not be popped")

	item, ok := q.TryPop(time.Unix(2000, 0))
	require.True(t, ok)
	assert.Equal(t, "future", item.ID)
}

func TestQueue_PeekDoesNotRemove(t *testing.T) {
	q := New()
	q.Put(Item{EffectiveStartTime: 1, ID: "x"})

	item, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "x", item.ID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_SnapshotForFiltersByIssuer(t *testing.T) {
	q := New()
	q.Put(Item{EffectiveStartTime: 1, ID: "a", IssuerID: "alice"})
	q.Put(Item{EffectiveStartTime: 2, ID: "b", IssuerID: "bob"})
	q.Put(Item{EffectiveStartTime: 3, ID: "c", IssuerID: "alice"})

	got := q.SnapshotFor("alice")
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []string{"a", "c"}, ids)

	assert.Equal(t, 3, q.Len(), "Snapshot must not mutate the queue")
}

func TestQueue_EmptyQueueOperations(t *testing.T) {
	q := New()
	assert.True(t, q.Empty())

	_, ok := q.Peek()
	assert.False(t, ok)

	_, ok = q.TryPop(time.Now())
	assert.False(t, ok)

	assert.Empty(t, q.Snapshot())
}
