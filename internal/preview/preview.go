// Package preview renders a site config to HTML. The same components back
// the editor preview and the published live site.
package preview

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/templ"

	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
)

const (
	defaultNavFontSize   = "16px"
	defaultNavHeight     = "4rem"
	defaultHeroMinHeight = "500px"
	defaultHeroFontSize  = "48px"
)

// reCSSValue accepts colors, lengths and font stacks; anything else is dropped.
var reCSSValue = regexp.MustCompile(`^[#a-zA-Z0-9 ,.%\-"']+$`)

// Page renders a complete HTML document for the config.
func Page(title string, cfg *siteconfig.SiteConfig) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title><style>`)
		hw.raw(baseCSS)
		hw.raw(`</style></head><body>`)
		if hw.err != nil {
			return hw.err
		}
		if err := Navbar(cfg.Navbar).Render(ctx, w); err != nil {
			return err
		}
		if err := Hero(cfg.Hero).Render(ctx, w); err != nil {
			return err
		}
		hw.raw(`</body></html>`)
		return hw.err
	})
}

// Navbar renders the navbar. Items are grouped by alignment; an item without
// alignment is placed on the left.
func Navbar(cfg siteconfig.NavbarConfig) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		class := "sc-navbar"
		if cfg.Position == siteconfig.PositionFixed {
			class += " sc-navbar--fixed"
		}
		hw.raw(`<nav class="` + class + `" style="`)
		hw.text(styleAttr(
			"background-color", cfg.BackgroundColor,
			"color", cfg.TextColor,
			"font-size", orDefault(cfg.FontSize, defaultNavFontSize),
			"font-family", orDefault(cfg.FontFamily, "inherit"),
			"height", orDefault(cfg.Height, "auto"),
		))
		hw.raw(`"><div class="sc-navbar__inner" style="`)
		hw.text(styleAttr("height", orDefault(cfg.Height, defaultNavHeight)))
		hw.raw(`"><a class="sc-brand" href="#">`)
		if cfg.Logo != "" {
			hw.raw(`<img class="sc-brand__logo" src="`)
			hw.text(string(templ.URL(cfg.Logo)))
			hw.raw(`" alt="`)
			hw.text(cfg.BrandName)
			hw.raw(`">`)
		}
		hw.raw(`<span>`)
		hw.text(cfg.BrandName)
		hw.raw(`</span></a>`)

		left, center, right := GroupByAlignment(cfg.NavItems)
		for _, group := range []struct {
			name  string
			items []siteconfig.NavItem
		}{
			{"left", left},
			{"center", center},
			{"right", right},
		} {
			if len(group.items) == 0 {
				continue
			}
			hw.raw(`<ul class="sc-nav sc-nav--` + group.name + `">`)
			for _, item := range group.items {
				hw.raw(`<li><a href="`)
				hw.text(string(templ.URL(item.Link)))
				hw.raw(`">`)
				hw.text(item.Title)
				hw.raw(`</a></li>`)
			}
			hw.raw(`</ul>`)
		}
		hw.raw(`</div></nav>`)
		return hw.err
	})
}

// Hero renders the hero section with at most two buttons.
func Hero(cfg siteconfig.HeroConfig) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}

		align := "left"
		if cfg.TextAlignment == siteconfig.TextCenter {
			align = "center"
		}

		section := styleAttr(
			"background-color", cfg.BackgroundColor,
			"min-height", orDefault(cfg.MinHeight, defaultHeroMinHeight),
			"font-family", orDefault(cfg.FontFamily, "inherit"),
		)
		if img := cssURL(cfg.BackgroundImage); img != "" {
			section += "background-image:" + img + ";background-size:cover;background-position:center;"
		}

		hw.raw(`<section class="sc-hero" style="`)
		hw.text(section)
		hw.raw(`"><div class="sc-hero__content sc-hero__content--` + align + `" style="`)
		hw.text(styleAttr("color", cfg.TextColor, "text-align", align))
		hw.raw(`"><h1 style="`)
		hw.text(styleAttr("font-size", orDefault(cfg.FontSize, defaultHeroFontSize)))
		hw.raw(`">`)
		hw.text(cfg.Heading)
		hw.raw(`</h1>`)
		if cfg.Subheading != "" {
			hw.raw(`<p class="sc-hero__subheading">`)
			hw.text(cfg.Subheading)
			hw.raw(`</p>`)
		}

		buttons := cfg.Buttons
		if len(buttons) > siteconfig.MaxHeroButtons {
			buttons = buttons[:siteconfig.MaxHeroButtons]
		}
		if len(buttons) > 0 {
			hw.raw(`<div class="sc-hero__buttons">`)
			for _, b := range buttons {
				variant := "primary"
				if b.Variant == siteconfig.VariantSecondary {
					variant = "secondary"
				}
				hw.raw(`<a class="sc-btn sc-btn--` + variant + `" href="`)
				hw.text(string(templ.URL(b.Link)))
				hw.raw(`">`)
				hw.text(b.Text)
				hw.raw(`</a>`)
			}
			hw.raw(`</div>`)
		}
		hw.raw(`</div></section>`)
		return hw.err
	})
}

// RenderPage renders Page into a byte slice.
func RenderPage(ctx context.Context, title string, cfg *siteconfig.SiteConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := Page(title, cfg).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GroupByAlignment splits nav items by alignment, keeping their order.
func GroupByAlignment(items []siteconfig.NavItem) (left, center, right []siteconfig.NavItem) {
	for _, item := range items {
		switch item.Alignment {
		case siteconfig.AlignCenter:
			center = append(center, item)
		case siteconfig.AlignRight:
			right = append(right, item)
		default:
			left = append(left, item)
		}
	}
	return left, center, right
}

type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// styleAttr builds "prop:value;" pairs, skipping empty or unsafe values.
func styleAttr(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		v := strings.TrimSpace(pairs[i+1])
		if v == "" || !reCSSValue.MatchString(v) {
			continue
		}
		b.WriteString(pairs[i])
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte(';')
	}
	return b.String()
}

func cssURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, `'"()\`) {
		return ""
	}
	u := string(templ.URL(raw))
	if strings.HasPrefix(u, "about:invalid") {
		return ""
	}
	return "url('" + u + "')"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

const baseCSS = `*{box-sizing:border-box}body{margin:0;font-family:system-ui,sans-serif}
.sc-navbar{width:100%;position:relative;box-shadow:0 1px 3px rgba(0,0,0,.2)}
.sc-navbar--fixed{position:sticky;top:0;z-index:50}
.sc-navbar__inner{display:flex;align-items:center;gap:2rem;padding:0 1.5rem}
.sc-brand{display:flex;align-items:center;gap:.5rem;color:inherit;text-decoration:none;font-weight:700}
.sc-brand__logo{height:2rem}
.sc-nav{display:flex;gap:1.5rem;list-style:none;margin:0;padding:0}
.sc-nav--center{margin:0 auto}.sc-nav--right{margin-left:auto}
.sc-nav a{color:inherit;text-decoration:none}
.sc-hero{display:flex;align-items:center;position:relative}
.sc-hero__content{width:100%;max-width:64rem;margin:0 auto;padding:4rem 1.5rem}
.sc-hero__buttons{display:flex;gap:1rem;margin-top:2rem}
.sc-hero__content--center .sc-hero__buttons{justify-content:center}
.sc-btn{padding:.75rem 1.5rem;border-radius:.5rem;text-decoration:none;font-weight:600}
.sc-btn--primary{background:#fff;color:#111}
.sc-btn--secondary{border:2px solid currentColor;color:inherit}`
