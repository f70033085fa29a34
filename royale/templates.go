package royale

import (
	"github.com/zeu5/royale-rl/config"
	"github.com/zeu5/royale-rl/perception"
)

// LoadTemplates registers the lifecycle buttons and every deck card with
// the matcher. Cards are registered under their name.
func LoadTemplates(m *perception.NCCMatcher, screen config.Screen, deck config.Deck) error {
	files := map[string]string{
		TemplateBattle:    screen.Templates.BattleButton,
		TemplatePlayAgain: screen.Templates.PlayAgain,
		TemplateOK:        screen.Templates.OKButton,
		TemplateCancel:    screen.Templates.CancelButton,
	}
	for _, c := range deck {
		files[c.Name] = c.Template
	}
	for name, path := range files {
		if path == "" {
			continue
		}
		if err := m.LoadFile(name, path); err != nil {
			return err
		}
	}
	return nil
}
