package actions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/royale-rl/config"
)

func slot(cost int) HandSlot {
	return HandSlot{Card: config.Card{Name: "c", ElixirCost: cost, Type: config.Troop}}
}

func TestRoundTrip(t *testing.T) {
	for card := 0; card < MaxHandSize; card++ {
		for pos := 0; pos < NumPositions; pos++ {
			id, err := Encode(Place(card, pos))
			require.NoError(t, err)
			m, err := Decode(id)
			require.NoError(t, err)
			assert.Equal(t, Place(card, pos), m)
		}
	}
	for id := 0; id < NumActions; id++ {
		m, err := Decode(id)
		require.NoError(t, err)
		back, err := Encode(m)
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}
}

func TestWait(t *testing.T) {
	id, err := Encode(Wait())
	require.NoError(t, err)
	assert.Equal(t, 24, id)

	m, err := Decode(24)
	require.NoError(t, err)
	assert.True(t, m.Wait)
	assert.Equal(t, "wait", m.String())
}

func TestEncodeOutOfRange(t *testing.T) {
	for _, m := range []Move{Place(4, 0), Place(-1, 0), Place(0, 6), Place(0, -1)} {
		_, err := Encode(m)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "move %+v", m)
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	for _, id := range []int{-1, 25, 100} {
		_, err := Decode(id)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestMaskWithPartialHand(t *testing.T) {
	hand := []HandSlot{slot(3), slot(5)}
	valid := ValidActions(hand, 4)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 24}, valid)

	mask := Mask(hand, 4)
	require.Len(t, mask, NumActions)
	count := 0
	for id, ok := range mask {
		if ok {
			count++
		}
		if id >= 6 && id <= 11 {
			assert.False(t, ok, "id %d", id)
		}
	}
	assert.Equal(t, 7, count)
}

func TestMaskAlwaysAllowsWait(t *testing.T) {
	assert.True(t, Mask(nil, 0)[WaitAction])
	assert.True(t, Mask([]HandSlot{slot(10)}, 0)[WaitAction])
	full := []HandSlot{slot(1), slot(1), slot(1), slot(1)}
	assert.Len(t, ValidActions(full, 10), NumActions)
}

func TestIsValid(t *testing.T) {
	hand := []HandSlot{slot(3), slot(5)}
	assert.True(t, IsValid(2, hand, 4))
	assert.False(t, IsValid(7, hand, 4))
	assert.True(t, IsValid(7, hand, 5))
	assert.False(t, IsValid(12, hand, 10))
	assert.True(t, IsValid(WaitAction, nil, 0))
	assert.False(t, IsValid(25, hand, 10))
}

func TestPositionName(t *testing.T) {
	assert.Equal(t, "behind_king_left", PositionName(0))
	assert.Equal(t, "princess_right", PositionName(5))
	assert.Equal(t, "unknown", PositionName(6))
}
