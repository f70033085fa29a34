package config

import "fmt"

type CardType string

const (
	Troop    CardType = "troop"
	Spell    CardType = "spell"
	Building CardType = "building"
)

const DeckSize = 8

// Card is a static deck entry. Template is the path of the image used to
// find the card in the hand bar.
type Card struct {
	Name       string   `yaml:"name" json:"name"`
	ElixirCost int      `yaml:"elixir_cost" json:"elixir_cost"`
	Type       CardType `yaml:"type" json:"type"`
	Template   string   `yaml:"template" json:"template"`
}

type Deck []Card

func (d Deck) ByName(name string) (Card, bool) {
	for _, c := range d {
		if c.Name == name {
			return c, true
		}
	}
	return Card{}, false
}

func (d Deck) Names() []string {
	names := make([]string, len(d))
	for i, c := range d {
		names[i] = c.Name
	}
	return names
}

func (d Deck) Validate() error {
	if len(d) != DeckSize {
		return fmt.Errorf("%w: deck must have %d cards, found %d", ErrInvalidConfig, DeckSize, len(d))
	}
	seen := make(map[string]bool)
	for _, c := range d {
		if c.Name == "" {
			return fmt.Errorf("%w: card without a name", ErrInvalidConfig)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate card %s", ErrInvalidConfig, c.Name)
		}
		seen[c.Name] = true
		if c.ElixirCost < 1 || c.ElixirCost > 10 {
			return fmt.Errorf("%w: invalid elixir cost for %s: %d", ErrInvalidConfig, c.Name, c.ElixirCost)
		}
		switch c.Type {
		case Troop, Spell, Building:
		default:
			return fmt.Errorf("%w: invalid type for %s: %q", ErrInvalidConfig, c.Name, c.Type)
		}
		if c.Template == "" {
			return fmt.Errorf("%w: card %s has no template", ErrInvalidConfig, c.Name)
		}
	}
	return nil
}

func DefaultDeck() Deck {
	card := func(name string, cost int, t CardType) Card {
		return Card{Name: name, ElixirCost: cost, Type: t, Template: "./ref_images/deck/" + name + ".png"}
	}
	return Deck{
		card("dark_prince", 4, Troop),
		card("prince", 5, Troop),
		card("ice_wiz", 3, Troop),
		card("knight", 3, Troop),
		card("log", 2, Spell),
		card("mini_pekka", 4, Troop),
		card("valk", 4, Troop),
		card("musketeer", 4, Troop),
	}
}
