package clock_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/cotext/clock"
)

func TestOperationIDCompare(t *testing.T) {
	id := func(r clock.ReplicaID, time clock.LamportTime) clock.OperationID {
		return clock.OperationID{Replica: r, Time: time}
	}
	tests := []struct {
		a, b clock.OperationID
		want int
	}{
		{id(0, 1), id(0, 1), 0},
		{id(0, 1), id(0, 2), -1},
		{id(0, 3), id(1, 2), +1},
		// Same timestamp: younger replica first.
		{id(2, 5), id(1, 5), -1},
		{id(0, 5), id(1, 5), +1},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.a.Compare(test.b), "%v.Compare(%v)", test.a, test.b)
		assert.Equal(t, -test.want, test.b.Compare(test.a), "%v.Compare(%v)", test.b, test.a)
	}
}

func TestLamportTick(t *testing.T) {
	c := clock.Lamport{Replica: 3}
	id1, err := c.Tick()
	require.NoError(t, err)
	id2, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, clock.OperationID{Replica: 3, Time: 1}, id1)
	assert.Equal(t, clock.OperationID{Replica: 3, Time: 2}, id2)
	assert.False(t, id1.IsZero())
	assert.True(t, clock.OperationID{}.IsZero())
}

func TestLamportContiguous(t *testing.T) {
	c := clock.Lamport{Replica: 0}
	// The n-th operation gets time n, with no gaps.
	for want := clock.LamportTime(1); want <= 5; want++ {
		id, err := c.Tick()
		require.NoError(t, err)
		assert.Equal(t, want, id.Time)
	}
}

func TestLamportExhaustion(t *testing.T) {
	c := clock.Lamport{Replica: 0, Time: math.MaxUint32}
	_, err := c.Tick()
	assert.ErrorIs(t, err, clock.ErrTimeExhausted)
}
