package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/sitecraft/internal/editor"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
)

var (
	itemTitle string
	itemText  string
	itemLink  string
	itemAlign string
	moveUp    bool
	moveDown  bool

	// Empty update flags leave the field as it is.
	setTitle   string
	setText    string
	setLink    string
	setAlign   string
	setVariant string
)

// heroCmd groups hero section edits.
var heroCmd = &cobra.Command{
	Use:   "hero",
	Short: "Edit the hero section of a project's draft",
}

// navCmd groups navbar edits.
var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "Edit the navigation links of a project's draft",
}

var heroAddButtonCmd = &cobra.Command{
	Use:   "add-button <project-id>",
	Short: "Add a hero button (at most two)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var added siteconfig.HeroButton
		err := editDraft(cmd.Context(), args[0], func(ed *editor.Editor) error {
			var err error
			added, err = ed.AddHeroButton(itemText, itemLink)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added %s button %q (%s).\n", added.Variant, added.Text, added.ID)
		return nil
	},
}

var heroRemoveButtonCmd = &cobra.Command{
	Use:   "remove-button <project-id> <button-id>",
	Short: "Remove a hero button",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := editDraft(cmd.Context(), args[0], func(ed *editor.Editor) error {
			return ed.RemoveHeroButton(args[1])
		})
		if err != nil {
			return err
		}
		fmt.Println("Button removed.")
		return nil
	},
}

var heroUpdateButtonCmd = &cobra.Command{
	Use:   "update-button <project-id> <button-id>",
	Short: "Change the text, link or variant of a hero button",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		variant, err := parseVariant(setVariant)
		if err != nil {
			return err
		}
		err = editDraft(cmd.Context(), args[0], func(ed *editor.Editor) error {
			return ed.UpdateHeroButton(args[1], func(b *siteconfig.HeroButton) {
				if setText != "" {
					b.Text = setText
				}
				if setLink != "" {
					b.Link = setLink
				}
				if variant != "" {
					b.Variant = variant
				}
			})
		})
		if err != nil {
			return err
		}
		fmt.Println("Button updated.")
		return nil
	},
}

var navAddItemCmd = &cobra.Command{
	Use:   "add-item <project-id>",
	Short: "Add a navigation link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		align, err := parseAlignment(itemAlign)
		if err != nil {
			return err
		}
		var added siteconfig.NavItem
		err = editDraft(cmd.Context(), args[0], func(ed *editor.Editor) error {
			var err error
			added, err = ed.AddNavItem(itemTitle, itemLink, align)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added link %q -> %s (%s).\n", added.Title, added.Link, added.ID)
		return nil
	},
}

var navRemoveItemCmd = &cobra.Command{
	Use:   "remove-item <project-id> <item-id>",
	Short: "Remove a navigation link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := editDraft(cmd.Context(), args[0], func(ed *editor.Editor) error {
			return ed.RemoveNavItem(args[1])
		})
		if err != nil {
			return err
		}
		fmt.Println("Link removed.")
		return nil
	},
}

var navUpdateItemCmd = &cobra.Command{
	Use:   "update-item <project-id> <item-id>",
	Short: "Change the title, link or alignment of a navigation link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var align siteconfig.Alignment
		if setAlign != "" {
			var err error
			if align, err = parseAlignment(setAlign); err != nil {
				return err
			}
		}
		err := editDraft(cmd.Context(), args[0], func(ed *editor.Editor) error {
			return ed.UpdateNavItem(args[1], func(item *siteconfig.NavItem) {
				if setTitle != "" {
					item.Title = setTitle
				}
				if setLink != "" {
					item.Link = setLink
				}
				if align != "" {
					item.Alignment = align
				}
			})
		})
		if err != nil {
			return err
		}
		fmt.Println("Link updated.")
		return nil
	},
}

var navMoveItemCmd = &cobra.Command{
	Use:   "move-item <project-id> <item-id>",
	Short: "Move a navigation link one place up or down",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if moveUp == moveDown {
			return fmt.Errorf("pass exactly one of --up or --down")
		}
		delta := 1
		if moveUp {
			delta = -1
		}
		err := editDraft(cmd.Context(), args[0], func(ed *editor.Editor) error {
			return ed.MoveNavItem(args[1], delta)
		})
		if err != nil {
			return err
		}
		fmt.Println("Link moved.")
		return nil
	},
}

var navListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List navigation links and hero buttons of the draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		stored, err := c.Draft(cmd.Context(), args[0])
		if err != nil {
			return projectError(err, args[0])
		}
		cfg, err := stored.Config()
		if err != nil {
			return err
		}

		fmt.Printf("Navbar %q\n", cfg.Navbar.BrandName)
		for _, item := range cfg.Navbar.NavItems {
			align := item.Alignment
			if align == "" {
				align = siteconfig.AlignLeft
			}
			fmt.Printf("  %-36s  %-6s  %-20s  %s\n", item.ID, align, truncate(item.Title, 20), item.Link)
		}
		fmt.Printf("Hero %q\n", cfg.Hero.Heading)
		for _, b := range cfg.Hero.Buttons {
			fmt.Printf("  %-36s  %-9s  %-20s  %s\n", b.ID, b.Variant, truncate(b.Text, 20), b.Link)
		}
		return nil
	},
}

func init() {
	heroAddButtonCmd.Flags().StringVar(&itemText, "text", "", "button text (default: New Button)")
	heroAddButtonCmd.Flags().StringVar(&itemLink, "link", "", "button link (default: #)")
	navAddItemCmd.Flags().StringVar(&itemTitle, "title", "", "link title (default: New Link)")
	navAddItemCmd.Flags().StringVar(&itemLink, "link", "", "link target (default: #)")
	navAddItemCmd.Flags().StringVar(&itemAlign, "align", "left", "alignment (left, center, right)")
	heroUpdateButtonCmd.Flags().StringVar(&setText, "text", "", "new button text")
	heroUpdateButtonCmd.Flags().StringVar(&setLink, "link", "", "new button link")
	heroUpdateButtonCmd.Flags().StringVar(&setVariant, "variant", "", "new variant (primary, secondary)")
	navUpdateItemCmd.Flags().StringVar(&setTitle, "title", "", "new link title")
	navUpdateItemCmd.Flags().StringVar(&setLink, "link", "", "new link target")
	navUpdateItemCmd.Flags().StringVar(&setAlign, "align", "", "new alignment (left, center, right)")
	navMoveItemCmd.Flags().BoolVar(&moveUp, "up", false, "move one place up")
	navMoveItemCmd.Flags().BoolVar(&moveDown, "down", false, "move one place down")

	heroCmd.AddCommand(heroAddButtonCmd)
	heroCmd.AddCommand(heroRemoveButtonCmd)
	heroCmd.AddCommand(heroUpdateButtonCmd)
	navCmd.AddCommand(navAddItemCmd)
	navCmd.AddCommand(navRemoveItemCmd)
	navCmd.AddCommand(navUpdateItemCmd)
	navCmd.AddCommand(navMoveItemCmd)
	navCmd.AddCommand(navListCmd)
	rootCmd.AddCommand(heroCmd)
	rootCmd.AddCommand(navCmd)
}

// editDraft opens an editing session, applies fn and saves the draft.
func editDraft(ctx context.Context, projectID string, fn func(*editor.Editor) error) error {
	c, err := authedClient(ctx)
	if err != nil {
		return err
	}
	log := newLogger()
	ed, err := editor.Open(ctx, c, projectID, editor.Options{Logger: &log})
	if err != nil {
		return projectError(err, projectID)
	}

	editErr := fn(ed)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := ed.Close(closeCtx); err != nil {
		return err
	}
	return editErr
}

func parseAlignment(s string) (siteconfig.Alignment, error) {
	switch a := siteconfig.Alignment(s); a {
	case siteconfig.AlignLeft, siteconfig.AlignCenter, siteconfig.AlignRight:
		return a, nil
	case "":
		return siteconfig.AlignLeft, nil
	default:
		return "", fmt.Errorf("invalid alignment %q (use left, center or right)", s)
	}
}

func parseVariant(s string) (siteconfig.Variant, error) {
	switch v := siteconfig.Variant(s); v {
	case "", siteconfig.VariantPrimary, siteconfig.VariantSecondary:
		return v, nil
	default:
		return "", fmt.Errorf("invalid variant %q (use primary or secondary)", s)
	}
}
