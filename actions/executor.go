package actions

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/logger"
	"github.com/zeu5/royale-rl/perception"
)

type Reason string

const (
	ReasonWait               Reason = "wait"
	ReasonPlaced             Reason = "placed"
	ReasonEmptySlot          Reason = "empty_slot"
	ReasonInsufficientElixir Reason = "insufficient_elixir"
	ReasonPlacementFailed    Reason = "placement_failed"
)

// Outcome describes what happened to an executed action.
type Outcome struct {
	Move   Move
	Reason Reason
	Card   string
	Target image.Point
}

// Success is true for waits and issued placements.
func (o Outcome) Success() bool {
	return o.Reason == ReasonWait || o.Reason == ReasonPlaced
}

// Executor turns action ids into placement commands.
type Executor struct {
	screen config.Screen
	placer perception.Placer
	log    *logrus.Entry
}

func NewExecutor(screen config.Screen, placer perception.Placer, log *logrus.Entry) *Executor {
	if log == nil {
		log = logger.Discard()
	}
	return &Executor{
		screen: screen,
		placer: placer,
		log:    log,
	}
}

// Target returns the absolute screen point of a deployment position.
func (e *Executor) Target(position int) image.Point {
	return e.screen.ToScreen(e.screen.Positions[position])
}

// Execute validates id against the current hand and elixir and issues the
// placement. Unplayable actions are no-ops reported through the Outcome;
// only a malformed id is an error.
func (e *Executor) Execute(ctx context.Context, id int, hand []HandSlot, elixir int) (Outcome, error) {
	m, err := Decode(id)
	if err != nil {
		return Outcome{}, err
	}
	if m.Wait {
		return Outcome{Move: m, Reason: ReasonWait}, nil
	}

	out := Outcome{Move: m}
	if m.Card >= len(hand) {
		out.Reason = ReasonEmptySlot
		e.log.WithFields(logrus.Fields{"action": id, "hand": len(hand)}).Info("card slot is empty, skipping")
		return out, nil
	}
	slot := hand[m.Card]
	out.Card = slot.Card.Name
	if slot.Cost() > elixir {
		out.Reason = ReasonInsufficientElixir
		e.log.WithFields(logrus.Fields{
			"card":   slot.Card.Name,
			"cost":   slot.Cost(),
			"elixir": elixir,
		}).Info("not enough elixir, skipping")
		return out, nil
	}

	out.Target = e.Target(m.Position)
	if err := e.placer.Place(ctx, slot.Anchor, out.Target); err != nil {
		out.Reason = ReasonPlacementFailed
		e.log.WithError(err).WithField("card", slot.Card.Name).Warn("placement failed")
		return out, nil
	}
	out.Reason = ReasonPlaced
	e.log.WithFields(logrus.Fields{
		"card":     slot.Card.Name,
		"position": PositionName(m.Position),
	}).Debug("card placed")
	return out, nil
}
