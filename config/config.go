package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete, explicitly constructed configuration of the agent.
// Every component receives the section it needs through its constructor.
type Config struct {
	Deck     Deck     `yaml:"deck" json:"deck"`
	Screen   Screen   `yaml:"screen" json:"screen"`
	Rewards  Rewards  `yaml:"rewards" json:"rewards"`
	Timing   Timing   `yaml:"timing" json:"timing"`
	Episode  Episode  `yaml:"episode" json:"episode"`
	Services Services `yaml:"services" json:"services"`
	Logging  Logging  `yaml:"logging" json:"logging"`
}

type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

func (p Point) Pt() image.Point {
	return image.Pt(p.X, p.Y)
}

type Rect struct {
	TopLeft     Point `yaml:"top_left" json:"top_left"`
	BottomRight Point `yaml:"bottom_right" json:"bottom_right"`
}

func (r Rect) Rect() image.Rectangle {
	return image.Rect(r.TopLeft.X, r.TopLeft.Y, r.BottomRight.X, r.BottomRight.Y)
}

type RGB struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
}

// Screen holds the pixel calibration of the game client.
// Game and Elixir.Start are absolute screen coordinates, every other
// region and point is relative to the game area's top-left corner.
type Screen struct {
	Game           Rect       `yaml:"game" json:"game"`
	Elixir         ElixirScan `yaml:"elixir" json:"elixir"`
	Timer          Rect       `yaml:"timer" json:"timer"`
	AllyBanner     Rect       `yaml:"ally_banner" json:"ally_banner"`
	EnemyBanner    Rect       `yaml:"enemy_banner" json:"enemy_banner"`
	WinnerText     string     `yaml:"winner_text" json:"winner_text"`
	Positions      []Point    `yaml:"positions" json:"positions"`
	Templates      Templates  `yaml:"templates" json:"templates"`
	MatchThreshold float64    `yaml:"match_threshold" json:"match_threshold"`
	DetectorSize   int        `yaml:"detector_size" json:"detector_size"`
	// HandBar bounds the card slots; card templates are only searched there.
	HandBar Rect `yaml:"hand_bar" json:"hand_bar"`
}

// ToScreen converts a game-relative point to absolute screen coordinates.
func (s Screen) ToScreen(p Point) image.Point {
	return p.Pt().Add(s.Game.TopLeft.Pt())
}

// RegionToScreen converts a game-relative region to absolute screen coordinates.
func (s Screen) RegionToScreen(r Rect) image.Rectangle {
	return r.Rect().Add(s.Game.TopLeft.Pt())
}

type ElixirScan struct {
	Start     Point `yaml:"start" json:"start"`
	Step      int   `yaml:"step" json:"step"`
	Slots     int   `yaml:"slots" json:"slots"`
	Color     RGB   `yaml:"color" json:"color"`
	Tolerance int   `yaml:"tolerance" json:"tolerance"`
}

type Templates struct {
	BattleButton string `yaml:"battle_button" json:"battle_button"`
	PlayAgain    string `yaml:"play_again" json:"play_again"`
	OKButton     string `yaml:"ok_button" json:"ok_button"`
	CancelButton string `yaml:"cancel_button" json:"cancel_button"`
}

// Rewards maps each named shaping term to its weight. TowerLost and Loss
// are expected to be negative.
type Rewards struct {
	TowerDestroyed  float64 `yaml:"tower_destroyed" json:"tower_destroyed"`
	TowerLost       float64 `yaml:"tower_lost" json:"tower_lost"`
	ElixirAdvantage float64 `yaml:"elixir_advantage" json:"elixir_advantage"`
	Win             float64 `yaml:"win" json:"win"`
	Loss            float64 `yaml:"loss" json:"loss"`
	Draw            float64 `yaml:"draw" json:"draw"`
	TimePenalty     float64 `yaml:"time_penalty" json:"time_penalty"`
}

// RewardsFromMap builds the weights from a name -> value set. Names that
// are absent keep their default, unknown names are rejected.
func RewardsFromMap(m map[string]float64) (Rewards, error) {
	r := DefaultRewards()
	fields := map[string]*float64{
		"tower_destroyed":  &r.TowerDestroyed,
		"tower_lost":       &r.TowerLost,
		"elixir_advantage": &r.ElixirAdvantage,
		"win":              &r.Win,
		"loss":             &r.Loss,
		"draw":             &r.Draw,
		"time_penalty":     &r.TimePenalty,
	}
	for name, val := range m {
		f, ok := fields[name]
		if !ok {
			return Rewards{}, fmt.Errorf("%w: unknown reward weight %q", ErrInvalidConfig, name)
		}
		*f = val
	}
	return r, nil
}

type Timing struct {
	StartAttempts   int           `yaml:"start_attempts" json:"start_attempts"`
	StartTimeout    time.Duration `yaml:"start_timeout" json:"start_timeout"`
	StartPoll       time.Duration `yaml:"start_poll" json:"start_poll"`
	StartSettle     time.Duration `yaml:"start_settle" json:"start_settle"`
	DismissSettle   time.Duration `yaml:"dismiss_settle" json:"dismiss_settle"`
	AttemptBackoff  time.Duration `yaml:"attempt_backoff" json:"attempt_backoff"`
	ResetRetryDelay time.Duration `yaml:"reset_retry_delay" json:"reset_retry_delay"`
	ResetSettle     time.Duration `yaml:"reset_settle" json:"reset_settle"`
	ActionSettle    time.Duration `yaml:"action_settle" json:"action_settle"`
}

type Episode struct {
	MaxSteps int `yaml:"max_steps" json:"max_steps"`
}

type Services struct {
	BridgeURL      string `yaml:"bridge_url" json:"bridge_url"`
	DetectorURL    string `yaml:"detector_url" json:"detector_url"`
	DetectorModel  string `yaml:"detector_model" json:"detector_model"`
	DetectorAPIKey string `yaml:"-" json:"-"`
	RedisAddr      string `yaml:"redis_addr" json:"redis_addr"`
	RedisStream    string `yaml:"redis_stream" json:"redis_stream"`
	RedisMaxLen    int64  `yaml:"redis_max_len" json:"redis_max_len"`
	SQLitePath     string `yaml:"sqlite_path" json:"sqlite_path"`
	ServerAddr     string `yaml:"server_addr" json:"server_addr"`
}

type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

func DefaultRewards() Rewards {
	return Rewards{
		TowerDestroyed:  100.0,
		TowerLost:       -100.0,
		ElixirAdvantage: 1.0,
		Win:             1000.0,
		Loss:            -1000.0,
		Draw:            0.0,
		TimePenalty:     -0.01,
	}
}

func DefaultTiming() Timing {
	return Timing{
		StartAttempts:   5,
		StartTimeout:    30 * time.Second,
		StartPoll:       500 * time.Millisecond,
		StartSettle:     3 * time.Second,
		DismissSettle:   2 * time.Second,
		AttemptBackoff:  2 * time.Second,
		ResetRetryDelay: 2 * time.Second,
		ResetSettle:     3 * time.Second,
		ActionSettle:    1 * time.Second,
	}
}

func DefaultScreen() Screen {
	return Screen{
		Game: Rect{TopLeft: Point{X: 735, Y: 30}, BottomRight: Point{X: 1185, Y: 1050}},
		Elixir: ElixirScan{
			Start:     Point{X: 868, Y: 1012},
			Step:      31,
			Slots:     10,
			Color:     RGB{R: 208, G: 33, B: 217},
			Tolerance: 80,
		},
		Timer:       Rect{TopLeft: Point{X: 370, Y: 28}, BottomRight: Point{X: 445, Y: 52}},
		AllyBanner:  Rect{TopLeft: Point{X: 150, Y: 560}, BottomRight: Point{X: 300, Y: 600}},
		EnemyBanner: Rect{TopLeft: Point{X: 150, Y: 150}, BottomRight: Point{X: 300, Y: 190}},
		WinnerText:  "Winner!",
		Positions: []Point{
			{X: 150, Y: 840}, // behind king, left
			{X: 300, Y: 840}, // behind king, right
			{X: 150, Y: 640}, // center, left
			{X: 300, Y: 640}, // center, right
			{X: 95, Y: 560},  // princess, left
			{X: 355, Y: 560}, // princess, right
		},
		Templates: Templates{
			BattleButton: "./ref_images/battle_button.png",
			PlayAgain:    "./ref_images/play_again.png",
			OKButton:     "./ref_images/ok_button.png",
			CancelButton: "./ref_images/cancel_button.png",
		},
		MatchThreshold: 0.8,
		DetectorSize:   640,
		HandBar:        Rect{TopLeft: Point{X: 0, Y: 820}, BottomRight: Point{X: 450, Y: 1020}},
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{
		Deck:    DefaultDeck(),
		Screen:  DefaultScreen(),
		Rewards: DefaultRewards(),
		Timing:  DefaultTiming(),
		Episode: Episode{MaxSteps: 300},
		Services: Services{
			BridgeURL:     "http://127.0.0.1:7075",
			DetectorURL:   "https://serverless.roboflow.com",
			DetectorModel: "cr-troop-tower-side-detection-y0qpd/3",
			RedisAddr:     "",
			RedisStream:   "royale:transitions",
			RedisMaxLen:   100000,
			SQLitePath:    "episodes.db",
			ServerAddr:    ":8080",
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
	c.ApplyEnv()
	return c
}

// ApplyDefaults fills zero values left by a partial file.
func (c *Config) ApplyDefaults() {
	if len(c.Deck) == 0 {
		c.Deck = DefaultDeck()
	}
	ds := DefaultScreen()
	if c.Screen.Game.Rect().Empty() {
		c.Screen.Game = ds.Game
	}
	if c.Screen.Elixir.Slots == 0 {
		c.Screen.Elixir.Slots = ds.Elixir.Slots
	}
	if c.Screen.Elixir.Step == 0 {
		c.Screen.Elixir.Step = ds.Elixir.Step
	}
	if c.Screen.Elixir.Tolerance == 0 {
		c.Screen.Elixir.Tolerance = ds.Elixir.Tolerance
	}
	if c.Screen.WinnerText == "" {
		c.Screen.WinnerText = ds.WinnerText
	}
	if len(c.Screen.Positions) == 0 {
		c.Screen.Positions = ds.Positions
	}
	if c.Screen.MatchThreshold == 0 {
		c.Screen.MatchThreshold = ds.MatchThreshold
	}
	if c.Screen.DetectorSize == 0 {
		c.Screen.DetectorSize = ds.DetectorSize
	}
	if c.Screen.HandBar.Rect().Empty() {
		c.Screen.HandBar = ds.HandBar
	}

	dt := DefaultTiming()
	if c.Timing.StartAttempts == 0 {
		c.Timing.StartAttempts = dt.StartAttempts
	}
	if c.Timing.StartTimeout == 0 {
		c.Timing.StartTimeout = dt.StartTimeout
	}
	if c.Timing.StartPoll == 0 {
		c.Timing.StartPoll = dt.StartPoll
	}
	for _, d := range []struct{ field, def *time.Duration }{
		{&c.Timing.StartSettle, &dt.StartSettle},
		{&c.Timing.DismissSettle, &dt.DismissSettle},
		{&c.Timing.AttemptBackoff, &dt.AttemptBackoff},
		{&c.Timing.ResetRetryDelay, &dt.ResetRetryDelay},
		{&c.Timing.ResetSettle, &dt.ResetSettle},
		{&c.Timing.ActionSettle, &dt.ActionSettle},
	} {
		if *d.field == 0 {
			*d.field = *d.def
		}
	}
	if c.Episode.MaxSteps == 0 {
		c.Episode.MaxSteps = 300
	}
	if c.Services.RedisStream == "" {
		c.Services.RedisStream = "royale:transitions"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.ApplyEnv()
}

// ApplyEnv reads secrets and overrides that never live in the file.
func (c *Config) ApplyEnv() {
	if key := os.Getenv("ROBOFLOW_API_KEY"); key != "" {
		c.Services.DetectorAPIKey = key
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the invariants every component relies on.
func (c *Config) Validate() error {
	if err := c.Deck.Validate(); err != nil {
		return err
	}
	if len(c.Screen.Positions) != 6 {
		return fmt.Errorf("%w: expected 6 deployment positions, got %d", ErrInvalidConfig, len(c.Screen.Positions))
	}
	if c.Screen.Elixir.Slots < 1 || c.Screen.Elixir.Slots > 10 {
		return fmt.Errorf("%w: elixir slots must be in [1,10], got %d", ErrInvalidConfig, c.Screen.Elixir.Slots)
	}
	if c.Screen.MatchThreshold <= 0 || c.Screen.MatchThreshold > 1 {
		return fmt.Errorf("%w: match threshold must be in (0,1], got %f", ErrInvalidConfig, c.Screen.MatchThreshold)
	}
	if c.Timing.StartAttempts < 1 {
		return fmt.Errorf("%w: start attempts must be positive", ErrInvalidConfig)
	}
	if c.Timing.StartPoll <= 0 || c.Timing.StartTimeout <= 0 {
		return fmt.Errorf("%w: start poll and timeout must be positive", ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"start_settle":      c.Timing.StartSettle,
		"dismiss_settle":    c.Timing.DismissSettle,
		"attempt_backoff":   c.Timing.AttemptBackoff,
		"reset_retry_delay": c.Timing.ResetRetryDelay,
		"reset_settle":      c.Timing.ResetSettle,
		"action_settle":     c.Timing.ActionSettle,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, d)
		}
	}
	if c.Episode.MaxSteps < 1 {
		return fmt.Errorf("%w: max steps must be positive", ErrInvalidConfig)
	}
	return nil
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
