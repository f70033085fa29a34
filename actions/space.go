// Package actions maps the discrete action ids a policy emits to card
// placements and back, and executes them on the device.
package actions

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/zeu5/royale-rl/config"
)

var ErrInvalidArgument = errors.New("invalid argument")

const (
	MaxHandSize  = 4
	NumPositions = 6
	NumActions   = MaxHandSize*NumPositions + 1
	WaitAction   = NumActions - 1
)

var positionNames = [NumPositions]string{
	"behind_king_left",
	"behind_king_right",
	"center_left",
	"center_right",
	"princess_left",
	"princess_right",
}

func PositionName(idx int) string {
	if idx < 0 || idx >= NumPositions {
		return "unknown"
	}
	return positionNames[idx]
}

// Move is a decoded action. Card is a hand slot index, not a card
// identity, so the id space stays fixed whatever the hand holds.
type Move struct {
	Card     int
	Position int
	Wait     bool
}

func Wait() Move { return Move{Wait: true} }

func Place(card, position int) Move { return Move{Card: card, Position: position} }

func (m Move) String() string {
	if m.Wait {
		return "wait"
	}
	return fmt.Sprintf("card %d -> %s", m.Card, PositionName(m.Position))
}

// HandSlot is a card currently visible in the hand with the point to press
// to select it.
type HandSlot struct {
	Card   config.Card
	Anchor image.Point
}

func (h HandSlot) Cost() int { return h.Card.ElixirCost }

func Encode(m Move) (int, error) {
	if m.Wait {
		return WaitAction, nil
	}
	if m.Card < 0 || m.Card >= MaxHandSize {
		return 0, fmt.Errorf("%w: card index %d not in [0,%d]", ErrInvalidArgument, m.Card, MaxHandSize-1)
	}
	if m.Position < 0 || m.Position >= NumPositions {
		return 0, fmt.Errorf("%w: position index %d not in [0,%d]", ErrInvalidArgument, m.Position, NumPositions-1)
	}
	return m.Card*NumPositions + m.Position, nil
}

func Decode(id int) (Move, error) {
	if id < 0 || id >= NumActions {
		return Move{}, fmt.Errorf("%w: action %d not in [0,%d]", ErrInvalidArgument, id, NumActions-1)
	}
	if id == WaitAction {
		return Wait(), nil
	}
	return Place(id/NumPositions, id%NumPositions), nil
}

// ValidActions lists, in ascending order, the ids playable with the given
// hand and elixir. The wait action is always included.
func ValidActions(hand []HandSlot, elixir int) []int {
	valid := []int{WaitAction}
	for i, slot := range hand {
		if i >= MaxHandSize {
			break
		}
		if slot.Cost() > elixir {
			continue
		}
		for p := 0; p < NumPositions; p++ {
			valid = append(valid, i*NumPositions+p)
		}
	}
	sort.Ints(valid)
	return valid
}

// Mask is the membership vector of ValidActions. Hand and elixir change
// every tick, so callers recompute it before each decision.
func Mask(hand []HandSlot, elixir int) []bool {
	mask := make([]bool, NumActions)
	for _, id := range ValidActions(hand, elixir) {
		mask[id] = true
	}
	return mask
}

func IsValid(id int, hand []HandSlot, elixir int) bool {
	m, err := Decode(id)
	if err != nil {
		return false
	}
	if m.Wait {
		return true
	}
	return m.Card < len(hand) && hand[m.Card].Cost() <= elixir
}
