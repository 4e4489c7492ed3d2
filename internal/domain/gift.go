package domain

import (
	"errors"
	"time"
)

var (
	ErrGiftIDEmpty      = errors.New("gift id empty")
	ErrGiftCost         = errors.New("gift cost must be positive")
	ErrGiftAnimation    = errors.New("unknown gift animation")
	ErrGiftNameEmpty    = errors.New("gift name empty")
	ErrGiftDuplicateID  = errors.New("duplicate gift id")
	ErrGiftCatalogEmpty = errors.New("gift catalog empty")
)

// AnimationCategory selects a render variant; it has no gameplay effect.
type AnimationCategory string

const (
	AnimationHeart  AnimationCategory = "heart"
	AnimationCar    AnimationCategory = "car"
	AnimationRocket AnimationCategory = "rocket"
)

func (c AnimationCategory) Valid() bool {
	switch c {
	case AnimationHeart, AnimationCar, AnimationRocket:
		return true
	}
	return false
}

type Gift struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Icon      string            `json:"icon" yaml:"icon"`
	Cost      int64             `json:"cost" yaml:"cost"`
	Animation AnimationCategory `json:"animation" yaml:"animation"`
}

func (g Gift) Validate() error {
	switch {
	case g.ID == "":
		return ErrGiftIDEmpty
	case g.Name == "":
		return ErrGiftNameEmpty
	case g.Cost <= 0:
		return ErrGiftCost
	case !g.Animation.Valid():
		return ErrGiftAnimation
	}
	return nil
}

// GiftAnimation is the ephemeral on-screen effect of one sent gift.
type GiftAnimation struct {
	ID         string    `json:"id"`
	Gift       Gift      `json:"gift"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}
