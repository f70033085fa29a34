// Package perception defines the collaborators the control loop consumes
// to see and act on the game screen, together with the adapters that talk
// to the device bridge and the hosted detection model.
package perception

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var ErrTemplateNotFound = errors.New("template not found")

// Capturer returns the current full screen.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
}

// TemplateMatcher finds a named template in a frame. Only the first match
// above the acceptance threshold is reported.
type TemplateMatcher interface {
	Find(name string, frame image.Image) (Match, bool)
}

// TextReader runs OCR over an image region. The returned text is never
// trusted by callers.
type TextReader interface {
	Read(ctx context.Context, region image.Image) (string, error)
}

// ObjectDetector returns detections in the detector's normalized frame.
type ObjectDetector interface {
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)
}

type Clicker interface {
	Click(ctx context.Context, pt image.Point) error
}

// Placer plays a card: a press on the card anchor followed by a press on
// the target. Fire and forget, the effect is observed on the next tick.
type Placer interface {
	Place(ctx context.Context, card, target image.Point) error
}

// Class is the object class reported by the detector.
type Class int

const (
	AllyKingTower Class = iota
	AllyPrincessTower
	AllyTroop
	EnemyKingTower
	EnemyPrincessTower
	EnemyTroop
)

func (c Class) String() string {
	switch c {
	case AllyKingTower:
		return "ally_king_tower"
	case AllyPrincessTower:
		return "ally_princess_tower"
	case AllyTroop:
		return "ally_troop"
	case EnemyKingTower:
		return "enemy_king_tower"
	case EnemyPrincessTower:
		return "enemy_princess_tower"
	case EnemyTroop:
		return "enemy_troop"
	}
	return fmt.Sprintf("class_%d", int(c))
}

func (c Class) IsTower() bool {
	switch c {
	case AllyKingTower, AllyPrincessTower, EnemyKingTower, EnemyPrincessTower:
		return true
	}
	return false
}

func (c Class) IsAlly() bool {
	return c == AllyKingTower || c == AllyPrincessTower || c == AllyTroop
}

func (c Class) IsEnemy() bool {
	return c == EnemyKingTower || c == EnemyPrincessTower || c == EnemyTroop
}

// Detection is a single object found by the detector. X and Y are the box
// center in the detector frame.
type Detection struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Class      Class   `json:"class_id"`
	Confidence float64 `json:"confidence"`
}

// Match is the bounding box of a template hit in frame coordinates.
type Match struct {
	TopLeft     image.Point
	BottomRight image.Point
	Score       float64
}

func (m Match) Rect() image.Rectangle {
	return image.Rectangle{Min: m.TopLeft, Max: m.BottomRight}
}

func (m Match) Center() image.Point {
	return image.Pt((m.TopLeft.X+m.BottomRight.X)/2, (m.TopLeft.Y+m.BottomRight.Y)/2)
}
