package tcpshell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(16)
	for _, c := range []byte("forth") {
		require.True(t, q.Offer(c, 0))
	}
	require.Equal(t, 5, q.Len())

	var got []byte
	for {
		c, ok := q.Poll(time.Millisecond)
		if !ok {
			break
		}
		got = append(got, c)
	}
	require.Equal(t, "forth", string(got))
	require.Zero(t, q.Len())
}

func TestQueue_OverflowRetainsFreeSlotsInOrder(t *testing.T) {
	q := NewQueue(16)
	for _, c := range []byte("12345678") {
		require.True(t, q.Offer(c, 0))
	}

	// 8 slots free, 20 offered, nobody draining
	offered := []byte("abcdefghijklmnopqrst")
	accepted := 0
	for _, c := range offered {
		if q.Offer(c, time.Millisecond) {
			accepted++
		}
	}
	require.Equal(t, 8, accepted)
	require.Equal(t, uint64(12), q.Dropped())

	got := make([]byte, 0, q.Cap())
	for q.Len() > 0 {
		c, ok := q.Poll(0)
		require.True(t, ok)
		got = append(got, c)
	}
	require.Equal(t, "12345678abcdefgh", string(got))
}

func TestQueue_PollEmptyTimesOut(t *testing.T) {
	q := NewQueue(4)

	start := time.Now()
	_, ok := q.Poll(5 * time.Millisecond)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	_, ok = q.Poll(0)
	require.False(t, ok)
}

func TestQueue_OfferWaitsForConsumer(t *testing.T) {
	q := NewQueue(1)
	require.True(t, q.Offer('a', 0))

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Poll(0)
	}()
	require.True(t, q.Offer('b', time.Second))
	require.Zero(t, q.Dropped())

	c, ok := q.Poll(0)
	require.True(t, ok)
	require.Equal(t, byte('b'), c)
}

func TestQueue_DefaultSize(t *testing.T) {
	require.Equal(t, DefaultQueueSize, NewQueue(0).Cap())
}
