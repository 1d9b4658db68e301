package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/sitecraft/internal/client"
)

var (
	projectName  string
	projectDesc  string
	projectForce bool
)

// projectCmd represents the project command group
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project management commands",
	Long: `Commands for managing your sitecraft projects.

Each project is one site with a draft config you edit and a published
config served at its live URL.

Examples:
  # List your projects
  sitectl project list

  # Create a project
  sitectl project create --name "Ada's Bakery" --description "Fresh bread daily"

  # Show project details
  sitectl project show <project-id>`,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		projects, err := c.ListProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}

		if jsonOutput() {
			return printJSON(os.Stdout, projects)
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-24s  %-24s  %-10s  %s\n", "ID", "NAME", "SLUG", "STATUS", "UPDATED")
		fmt.Println(strings.Repeat("-", 120))
		for _, p := range projects {
			fmt.Printf("%-36s  %-24s  %-24s  %-10s  %s\n",
				p.ID,
				truncate(p.Name, 24),
				truncate(p.Slug, 24),
				projectStatus(p),
				formatTime(&p.UpdatedAt),
			)
		}
		fmt.Printf("\nTotal: %d project(s)\n", len(projects))
		return nil
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new project",
	Long: `Create a new project. The server derives a unique slug from the name.

Example:
  sitectl project create --name "My Portfolio" --description "Things I made"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if projectName == "" {
			return fmt.Errorf("--name is required")
		}
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		p, err := c.CreateProject(cmd.Context(), projectName, projectDesc)
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		if jsonOutput() {
			return printJSON(os.Stdout, p)
		}
		fmt.Printf("Project created.\n  ID:   %s\n  Slug: %s\n", p.ID, p.Slug)
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		p, err := c.Project(cmd.Context(), args[0])
		if err != nil {
			return projectError(err, args[0])
		}
		if jsonOutput() {
			return printJSON(os.Stdout, p)
		}

		fmt.Printf("ID:          %s\n", p.ID)
		fmt.Printf("Name:        %s\n", p.Name)
		fmt.Printf("Slug:        %s\n", p.Slug)
		if p.Description != "" {
			fmt.Printf("Description: %s\n", p.Description)
		}
		fmt.Printf("Status:      %s\n", projectStatus(p))
		fmt.Printf("Draft saved: %s\n", formatTime(p.DraftUpdatedAt))
		fmt.Printf("Published:   %s\n", formatTime(p.PublishedAt))
		if p.LiveURL != "" {
			fmt.Printf("Live URL:    %s\n", p.LiveURL)
		}
		fmt.Printf("Created:     %s\n", formatTime(&p.CreatedAt))
		return nil
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <project-id>",
	Short: "Rename a project or change its description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name, desc *string
		if cmd.Flags().Changed("name") {
			name = &projectName
		}
		if cmd.Flags().Changed("description") {
			desc = &projectDesc
		}
		if name == nil && desc == nil {
			return fmt.Errorf("nothing to update; pass --name or --description")
		}

		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		p, err := c.UpdateProject(cmd.Context(), args[0], name, desc)
		if err != nil {
			return projectError(err, args[0])
		}
		fmt.Printf("Project %s updated.\n", p.Name)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and its live site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		p, err := c.Project(ctx, args[0])
		if err != nil {
			return projectError(err, args[0])
		}

		if !projectForce {
			fmt.Printf("Delete project %q (%s)? [y/N]: ", p.Name, p.Slug)
			answer, _ := stdin.ReadString('\n')
			answer = strings.ToLower(strings.TrimSpace(answer))
			if answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := c.DeleteProject(ctx, p.ID); err != nil {
			return projectError(err, p.ID)
		}
		fmt.Printf("Project %q deleted.\n", p.Name)
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectName, "name", "", "project name (required)")
	projectCreateCmd.Flags().StringVar(&projectDesc, "description", "", "project description")
	projectUpdateCmd.Flags().StringVar(&projectName, "name", "", "new project name")
	projectUpdateCmd.Flags().StringVar(&projectDesc, "description", "", "new project description")
	projectDeleteCmd.Flags().BoolVarP(&projectForce, "force", "f", false, "skip confirmation")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectUpdateCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectStatus(p *client.Project) string {
	switch {
	case !p.Published:
		return "draft"
	case p.HasUnpublishedChanges:
		return "changed"
	default:
		return "live"
	}
}

func projectError(err error, id string) error {
	if client.IsNotFound(err) {
		return fmt.Errorf("project %s not found", id)
	}
	return err
}
