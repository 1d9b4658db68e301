package siteconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Stored documents come in three shapes:
//
//	v0: a flat navbar object (no "version", no "navbar" key)
//	v1: {"navbar": {...}, "hero": {...}} without "version"
//	v2: {"version": 2, "navbar": {...}, "hero": {...}}

// Migration upgrades a decoded document from version From to From+1.
type Migration struct {
	From int
	Name string
	Up   func(doc map[string]any) (map[string]any, error)
}

// migrations are keyed by the version they upgrade from.
var migrations = map[int]Migration{
	0: {From: 0, Name: "wrap_flat_navbar", Up: wrapFlatNavbar},
	1: {From: 1, Name: "strip_obsolete_fields", Up: stripObsoleteFields},
}

// Parse decodes a stored document of any supported version into the current
// shape. Missing lists become empty and a missing section becomes its default.
func Parse(data []byte) (*SiteConfig, error) {
	cfg, _, err := ParseVersion(data)
	return cfg, err
}

// ParseVersion is Parse that also reports the version the document was stored at.
func ParseVersion(data []byte) (*SiteConfig, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc == nil {
		return nil, 0, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	doc, from, err := Migrate(doc)
	if err != nil {
		return nil, from, err
	}

	migrated, err := json.Marshal(doc)
	if err != nil {
		return nil, from, fmt.Errorf("re-encode migrated config: %w", err)
	}

	cfg := &SiteConfig{}
	if err := json.Unmarshal(migrated, cfg); err != nil {
		return nil, from, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !present(doc, "navbar") {
		cfg.Navbar = DefaultNavbar()
	}
	if !present(doc, "hero") {
		cfg.Hero = DefaultHero()
	}
	cfg.Normalize()
	return cfg, from, nil
}

// Load is Parse for documents held as text.
func Load(raw string) (*SiteConfig, error) {
	return Parse([]byte(raw))
}

// DetectVersion reports the schema version of a decoded document.
func DetectVersion(doc map[string]any) (int, error) {
	if v, ok := doc["version"]; ok {
		return parseVersion(v)
	}
	if _, ok := doc["navbar"]; ok {
		return 1, nil
	}
	if _, ok := doc["hero"]; ok {
		return 1, nil
	}
	return 0, nil
}

// Migrate upgrades doc to CurrentVersion and returns it with the version it
// was stored at.
func Migrate(doc map[string]any) (map[string]any, int, error) {
	from, err := DetectVersion(doc)
	if err != nil {
		return nil, 0, err
	}
	if from > CurrentVersion {
		return nil, from, fmt.Errorf("%w: %d", ErrUnsupportedVersion, from)
	}

	for v := from; v < CurrentVersion; v++ {
		m, ok := migrations[v]
		if !ok {
			return nil, from, fmt.Errorf("no migration from version %d", v)
		}
		doc, err = m.Up(doc)
		if err != nil {
			return nil, from, fmt.Errorf("migration %d (%s): %w", m.From, m.Name, err)
		}
		doc["version"] = v + 1
	}
	return doc, from, nil
}

func parseVersion(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, fmt.Errorf("%w: version %q", ErrMalformed, n.String())
		}
		return int(i), nil
	case float64:
		if n < 0 || n != float64(int(n)) {
			return 0, fmt.Errorf("%w: version %v", ErrMalformed, n)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: version %v", ErrMalformed, v)
	}
}

func wrapFlatNavbar(doc map[string]any) (map[string]any, error) {
	return map[string]any{"navbar": doc}, nil
}

func stripObsoleteFields(doc map[string]any) (map[string]any, error) {
	if raw, ok := doc["navbar"]; ok && raw != nil {
		navbar, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: navbar is not an object", ErrMalformed)
		}
		upgradeNavbar(navbar)
	}
	if raw, ok := doc["hero"]; ok && raw != nil {
		hero, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: hero is not an object", ErrMalformed)
		}
		upgradeHero(hero)
	}
	return doc, nil
}

func upgradeNavbar(navbar map[string]any) {
	for _, k := range []string{"isEditing", "onEdit", "draftConfig"} {
		delete(navbar, k)
	}
	rename(navbar, "menuItems", "navItems")
	rename(navbar, "logoUrl", "logo")

	if sticky, ok := navbar["sticky"]; ok {
		delete(navbar, "sticky")
		if _, has := navbar["position"]; !has {
			if b, _ := sticky.(bool); b {
				navbar["position"] = string(PositionFixed)
			} else {
				navbar["position"] = string(PositionStatic)
			}
		}
	}
}

func upgradeHero(hero map[string]any) {
	for _, k := range []string{"isEditing", "onEdit"} {
		delete(hero, k)
	}
	rename(hero, "alignment", "textAlignment")

	text, hasText := hero["buttonText"]
	link := hero["buttonLink"]
	delete(hero, "buttonText")
	delete(hero, "buttonLink")
	if _, has := hero["buttons"]; has || !hasText {
		return
	}
	label, _ := text.(string)
	if label == "" {
		return
	}
	href, _ := link.(string)
	if href == "" {
		href = "#"
	}
	hero["buttons"] = []any{
		map[string]any{
			"id":      "1",
			"text":    label,
			"link":    href,
			"variant": string(VariantPrimary),
		},
	}
}

// rename moves a legacy key to its new name unless the new key is already set.
func rename(m map[string]any, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	if _, has := m[to]; !has {
		m[to] = v
	}
}

func present(doc map[string]any, key string) bool {
	v, ok := doc[key]
	return ok && v != nil
}
