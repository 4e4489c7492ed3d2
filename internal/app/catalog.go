package app

import (
	"fmt"
	"os"

	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// GiftsFile is the top-level YAML layout of a gift catalog override.
type GiftsFile struct {
	Gifts []domain.Gift `yaml:"gifts"`
}

// Catalog is an immutable, ordered gift catalog.
type Catalog struct {
	order []domain.Gift
	byID  map[string]domain.Gift
}

func DefaultGifts() []domain.Gift {
	return []domain.Gift{
		{ID: "rose", Name: "Rose", Icon: "🌹", Cost: 1, Animation: domain.AnimationHeart},
		{ID: "heart", Name: "Love", Icon: "❤️", Cost: 5, Animation: domain.AnimationHeart},
		{ID: "kiss", Name: "Kiss", Icon: "💋", Cost: 10, Animation: domain.AnimationHeart},
		{ID: "ring", Name: "Ring", Icon: "💍", Cost: 99, Animation: domain.AnimationHeart},
		{ID: "car", Name: "Supercar", Icon: "🏎️", Cost: 500, Animation: domain.AnimationCar},
		{ID: "rocket", Name: "Rocket", Icon: "🚀", Cost: 1000, Animation: domain.AnimationRocket},
		{ID: "yacht", Name: "Yacht", Icon: "🛥️", Cost: 5000, Animation: domain.AnimationCar},
		{ID: "dragon", Name: "Dragon", Icon: "🐉", Cost: 10000, Animation: domain.AnimationRocket},
	}
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultGifts())
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog validates every gift and rejects duplicate ids.
func NewCatalog(gifts []domain.Gift) (*Catalog, error) {
	if len(gifts) == 0 {
		return nil, domain.ErrGiftCatalogEmpty
	}
	c := &Catalog{
		order: make([]domain.Gift, 0, len(gifts)),
		byID:  make(map[string]domain.Gift, len(gifts)),
	}
	for _, g := range gifts {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("gift %q: %w", g.ID, err)
		}
		if _, dup := c.byID[g.ID]; dup {
			return nil, fmt.Errorf("gift %q: %w", g.ID, domain.ErrGiftDuplicateID)
		}
		c.byID[g.ID] = g
		c.order = append(c.order, g)
	}
	return c, nil
}

// LoadCatalog reads a YAML gift list. An empty path yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("read gifts file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f GiftsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse gifts file: %w", err)
	}
	c, err := NewCatalog(f.Gifts)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.catalog").Int("count", len(c.order)).Msg("loaded gift catalog")
	return c, nil
}

func (c *Catalog) Gift(id string) (domain.Gift, bool) {
	g, ok := c.byID[id]
	return g, ok
}

func (c *Catalog) List() []domain.Gift {
	out := make([]domain.Gift, len(c.order))
	copy(out, c.order)
	return out
}
