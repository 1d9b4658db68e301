package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/sitecraft/internal/client"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
)

var (
	draftFile   string
	draftFormat string
	previewOut  string
)

// draftCmd represents the draft command group
var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Read and write a project's draft config",
	Long: `Commands for the draft config, the auto-saved, unpublished version of a site.

Config files may be JSON or YAML; the format follows the file extension.

Examples:
  # Download the draft as YAML
  sitectl draft get <project-id> --file site.yaml

  # Upload a config file as the new draft
  sitectl draft save <project-id> --file site.yaml`,
}

var draftGetCmd = &cobra.Command{
	Use:   "get <project-id>",
	Short: "Print or download the draft config",
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
		return writeStoredConfig(stored)
	},
}

var draftSaveCmd = &cobra.Command{
	Use:   "save <project-id>",
	Short: "Upload a config file as the draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if draftFile == "" {
			return fmt.Errorf("--file is required")
		}
		cfg, err := readConfigFile(draftFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		stored, err := c.SaveDraftRevision(cmd.Context(), args[0], cfg)
		if err != nil {
			return projectError(err, args[0])
		}
		fmt.Printf("Draft saved (revision %d).\n", stored.Revision)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <project-id>",
	Short: "Publish the draft, or a config file, as the live site",
	Long: `Publish makes a config live. Without --file the current draft is published.

Example:
  sitectl publish <project-id>
  sitectl publish <project-id> --file site.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var stored *client.StoredConfig
		if draftFile == "" {
			if stored, err = c.Draft(ctx, args[0]); err != nil {
				return projectError(err, args[0])
			}
		}
		cfg, err := configFromFileOrStored(stored)
		if err != nil {
			return err
		}

		res, err := c.Publish(ctx, args[0], cfg)
		if err != nil {
			return projectError(err, args[0])
		}
		fmt.Println(res.Message)
		fmt.Printf("Live at %s\n", res.LiveURL)
		return nil
	},
}

var publishedCmd = &cobra.Command{
	Use:   "published <project-id>",
	Short: "Print or download the published config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		stored, err := c.Published(cmd.Context(), args[0])
		if client.IsNotFound(err) {
			return fmt.Errorf("project %s is not published or does not exist", args[0])
		}
		if err != nil {
			return err
		}
		return writeStoredConfig(stored)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <project-id>",
	Short: "Render the draft to an HTML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		page, err := c.Preview(cmd.Context(), args[0])
		if err != nil {
			return projectError(err, args[0])
		}
		if previewOut == "" || previewOut == "-" {
			_, err = os.Stdout.Write(page)
			return err
		}
		if err := writeFileAtomic(previewOut, page); err != nil {
			return fmt.Errorf("write preview: %w", err)
		}
		fmt.Printf("Preview written to %s\n", previewOut)
		return nil
	},
}

func init() {
	draftGetCmd.Flags().StringVarP(&draftFile, "file", "f", "", "write to this file instead of stdout")
	draftGetCmd.Flags().StringVar(&draftFormat, "format", "yaml", "stdout format (yaml, json)")
	draftSaveCmd.Flags().StringVarP(&draftFile, "file", "f", "", "config file to upload (required)")
	publishCmd.Flags().StringVarP(&draftFile, "file", "f", "", "publish this config file instead of the draft")
	publishedCmd.Flags().StringVarP(&draftFile, "file", "f", "", "write to this file instead of stdout")
	publishedCmd.Flags().StringVar(&draftFormat, "format", "yaml", "stdout format (yaml, json)")
	previewCmd.Flags().StringVar(&previewOut, "out", "", "output HTML file (default: stdout)")

	draftCmd.AddCommand(draftGetCmd)
	draftCmd.AddCommand(draftSaveCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(publishedCmd)
	rootCmd.AddCommand(previewCmd)
}

func configFromFileOrStored(stored *client.StoredConfig) (*siteconfig.SiteConfig, error) {
	if draftFile != "" {
		return readConfigFile(draftFile)
	}
	return stored.Config()
}

// writeStoredConfig prints the config or writes it to --file.
func writeStoredConfig(stored *client.StoredConfig) error {
	cfg, err := stored.Config()
	if err != nil {
		return err
	}
	if draftFile != "" {
		data, err := encodeConfig(cfg, isYAML(draftFile))
		if err != nil {
			return err
		}
		if err := writeFileAtomic(draftFile, data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote revision %d to %s\n", stored.Revision, draftFile)
		return nil
	}
	data, err := encodeConfig(cfg, draftFormat != "json" && !jsonOutput())
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
