// Package siteconfig defines the editable site configuration document
// (navbar and hero section), its defaults, validation rules, edit helpers
// and the loader that migrates older stored shapes to the current version.
package siteconfig

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentVersion is the schema version written by Encode.
const CurrentVersion = 2

// MaxHeroButtons caps the number of call-to-action buttons in the hero.
const MaxHeroButtons = 2

var (
	// ErrTooManyButtons is returned when a hero would exceed MaxHeroButtons.
	ErrTooManyButtons = errors.New("maximum 2 buttons allowed")
	// ErrDuplicateID is returned when two items of one list share an id.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidValue is returned for values outside an enumerated set.
	ErrInvalidValue = errors.New("invalid value")
	// ErrUnsupportedVersion is returned for documents newer than CurrentVersion.
	ErrUnsupportedVersion = errors.New("unsupported config version")
	// ErrMalformed is returned when stored data is not a config object.
	ErrMalformed = errors.New("malformed config")
)

// Alignment places a nav item inside the navbar.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Position controls whether the navbar sticks to the top of the page.
type Position string

const (
	PositionFixed  Position = "fixed"
	PositionStatic Position = "static"
)

// TextAlignment aligns hero content.
type TextAlignment string

const (
	TextLeft   TextAlignment = "left"
	TextCenter TextAlignment = "center"
)

// Variant is the visual style of a hero button.
type Variant string

const (
	VariantPrimary   Variant = "primary"
	VariantSecondary Variant = "secondary"
)

// NavItem is a single navigation link.
type NavItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Alignment Alignment `json:"alignment,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// NavbarConfig is the navbar section of a site.
type NavbarConfig struct {
	ID              string    `json:"id"`
	BrandName       string    `json:"brandName"`
	Logo            string    `json:"logo,omitempty"`
	NavItems        []NavItem `json:"navItems"`
	BackgroundColor string    `json:"backgroundColor"`
	TextColor       string    `json:"textColor"`
	FontSize        string    `json:"fontSize,omitempty"`
	FontFamily      string    `json:"fontFamily,omitempty"`
	Position        Position  `json:"position,omitempty"`
	Height          string    `json:"height,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// HeroButton is a call-to-action link rendered in the hero.
type HeroButton struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Link    string  `json:"link"`
	Variant Variant `json:"variant"`

	Extra map[string]json.RawMessage `json:"-"`
}

// HeroConfig is the hero section of a site.
type HeroConfig struct {
	ID              string        `json:"id"`
	Heading         string        `json:"heading"`
	Subheading      string        `json:"subheading,omitempty"`
	BackgroundColor string        `json:"backgroundColor"`
	TextColor       string        `json:"textColor"`
	TextAlignment   TextAlignment `json:"textAlignment"`
	Buttons         []HeroButton  `json:"buttons"`
	BackgroundImage string        `json:"backgroundImage,omitempty"`
	MinHeight       string        `json:"minHeight,omitempty"`
	FontSize        string        `json:"fontSize,omitempty"`
	FontFamily      string        `json:"fontFamily,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// SiteConfig is the document stored as a project's draft or published config.
type SiteConfig struct {
	Version int          `json:"version"`
	Navbar  NavbarConfig `json:"navbar"`
	Hero    HeroConfig   `json:"hero"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Encode returns the canonical JSON form of the config.
func (c *SiteConfig) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Normalize fills list defaults and missing identifiers in place.
func (c *SiteConfig) Normalize() {
	c.Version = CurrentVersion
	if c.Navbar.NavItems == nil {
		c.Navbar.NavItems = []NavItem{}
	}
	for i := range c.Navbar.NavItems {
		if c.Navbar.NavItems[i].ID == "" {
			c.Navbar.NavItems[i].ID = newID()
		}
	}
	if c.Hero.Buttons == nil {
		c.Hero.Buttons = []HeroButton{}
	}
	for i := range c.Hero.Buttons {
		b := &c.Hero.Buttons[i]
		if b.ID == "" {
			b.ID = newID()
		}
		if b.Variant == "" {
			b.Variant = VariantPrimary
		}
	}
}

// Repair fixes stored configs that break the list rules: duplicate ids are
// replaced with fresh ones and buttons past MaxHeroButtons are dropped. It
// returns one note per change.
func (c *SiteConfig) Repair() []string {
	var notes []string

	seen := make(map[string]struct{}, len(c.Navbar.NavItems))
	for i := range c.Navbar.NavItems {
		item := &c.Navbar.NavItems[i]
		if _, dup := seen[item.ID]; dup {
			old := item.ID
			item.ID = newID()
			notes = append(notes, fmt.Sprintf("nav item %q re-assigned id %s", old, item.ID))
		}
		seen[item.ID] = struct{}{}
	}

	if n := len(c.Hero.Buttons); n > MaxHeroButtons {
		for _, b := range c.Hero.Buttons[MaxHeroButtons:] {
			notes = append(notes, fmt.Sprintf("button %q (%s) dropped", b.ID, b.Text))
		}
		c.Hero.Buttons = c.Hero.Buttons[:MaxHeroButtons]
	}

	seen = make(map[string]struct{}, len(c.Hero.Buttons))
	for i := range c.Hero.Buttons {
		b := &c.Hero.Buttons[i]
		if _, dup := seen[b.ID]; dup {
			old := b.ID
			b.ID = newID()
			notes = append(notes, fmt.Sprintf("button %q re-assigned id %s", old, b.ID))
		}
		seen[b.ID] = struct{}{}
	}
	return notes
}

// Validate checks list caps, id uniqueness and enumerated values.
func (c *SiteConfig) Validate() error {
	if err := c.Navbar.Validate(); err != nil {
		return fmt.Errorf("navbar: %w", err)
	}
	if err := c.Hero.Validate(); err != nil {
		return fmt.Errorf("hero: %w", err)
	}
	return nil
}

// Validate checks the navbar items and enumerated fields.
func (n *NavbarConfig) Validate() error {
	switch n.Position {
	case "", PositionFixed, PositionStatic:
	default:
		return fmt.Errorf("%w: position %q", ErrInvalidValue, n.Position)
	}

	seen := make(map[string]struct{}, len(n.NavItems))
	for _, item := range n.NavItems {
		if item.ID == "" {
			return fmt.Errorf("%w: nav item without id", ErrInvalidValue)
		}
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("%w: nav item %q", ErrDuplicateID, item.ID)
		}
		seen[item.ID] = struct{}{}

		switch item.Alignment {
		case "", AlignLeft, AlignCenter, AlignRight:
		default:
			return fmt.Errorf("%w: alignment %q", ErrInvalidValue, item.Alignment)
		}
	}
	return nil
}

// Validate checks the button cap, button ids and enumerated fields.
func (h *HeroConfig) Validate() error {
	switch h.TextAlignment {
	case "", TextLeft, TextCenter:
	default:
		return fmt.Errorf("%w: textAlignment %q", ErrInvalidValue, h.TextAlignment)
	}

	if len(h.Buttons) > MaxHeroButtons {
		return ErrTooManyButtons
	}

	seen := make(map[string]struct{}, len(h.Buttons))
	for _, b := range h.Buttons {
		if b.ID == "" {
			return fmt.Errorf("%w: button without id", ErrInvalidValue)
		}
		if _, ok := seen[b.ID]; ok {
			return fmt.Errorf("%w: button %q", ErrDuplicateID, b.ID)
		}
		seen[b.ID] = struct{}{}

		switch b.Variant {
		case VariantPrimary, VariantSecondary:
		default:
			return fmt.Errorf("%w: variant %q", ErrInvalidValue, b.Variant)
		}
	}
	return nil
}

// Clone returns a deep copy of the config.
func (c *SiteConfig) Clone() *SiteConfig {
	if c == nil {
		return nil
	}
	out := &SiteConfig{
		Version: c.Version,
		Navbar:  c.Navbar,
		Hero:    c.Hero,
		Extra:   cloneExtra(c.Extra),
	}
	out.Navbar.Extra = cloneExtra(c.Navbar.Extra)
	out.Hero.Extra = cloneExtra(c.Hero.Extra)

	if c.Navbar.NavItems != nil {
		out.Navbar.NavItems = make([]NavItem, len(c.Navbar.NavItems))
		for i, item := range c.Navbar.NavItems {
			item.Extra = cloneExtra(item.Extra)
			out.Navbar.NavItems[i] = item
		}
	}
	if c.Hero.Buttons != nil {
		out.Hero.Buttons = make([]HeroButton, len(c.Hero.Buttons))
		for i, b := range c.Hero.Buttons {
			b.Extra = cloneExtra(b.Extra)
			out.Hero.Buttons[i] = b
		}
	}
	return out
}

func cloneExtra(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
