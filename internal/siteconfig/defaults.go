package siteconfig

import "github.com/google/uuid"

// Default returns the configuration a new project starts with.
func Default() *SiteConfig {
	return &SiteConfig{
		Version: CurrentVersion,
		Navbar:  DefaultNavbar(),
		Hero:    DefaultHero(),
	}
}

// DefaultNavbar returns the starter navbar.
func DefaultNavbar() NavbarConfig {
	return NavbarConfig{
		ID:        "1",
		BrandName: "My Site",
		NavItems: []NavItem{
			{ID: "1", Title: "Home", Link: "#home", Alignment: AlignLeft},
			{ID: "2", Title: "About", Link: "#about", Alignment: AlignLeft},
		},
		BackgroundColor: "#333",
		TextColor:       "#fff",
	}
}

// DefaultHero returns the starter hero section.
func DefaultHero() HeroConfig {
	return HeroConfig{
		ID:              "1",
		Heading:         "Welcome to My Site",
		Subheading:      "Build something people love",
		BackgroundColor: "#1a202c",
		TextColor:       "#ffffff",
		TextAlignment:   TextCenter,
		Buttons: []HeroButton{
			{ID: "1", Text: "Get Started", Link: "#", Variant: VariantPrimary},
		},
	}
}

func newID() string {
	return uuid.NewString()
}
