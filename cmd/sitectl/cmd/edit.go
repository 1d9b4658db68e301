package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/sitecraft/internal/editor"
	"github.com/good-yellow-bee/sitecraft/internal/preview"
	"github.com/good-yellow-bee/sitecraft/internal/siteconfig"
	"github.com/good-yellow-bee/sitecraft/internal/watcher"
)

var (
	editFile      string
	editPreview   string
	editSaveDelay time.Duration
	editPublish   bool
)

var editCmd = &cobra.Command{
	Use:   "edit <project-id>",
	Short: "Live-edit a project from a local config file",
	Long: `Edit watches a local YAML or JSON config file. Every time the file
changes, the new config is validated, applied to the editing session and
auto-saved as the draft once you stop typing. With --preview the rendered
page is rewritten after each change; open it in a browser to follow along.

If the file does not exist it is created from the current draft.

While editing, type a command and press enter:
  publish   publish the current config
  status    show save and publish status
  quit      save pending changes and exit

Example:
  sitectl edit <project-id> --file site.yaml --preview preview.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if editFile == "" {
			return fmt.Errorf("--file is required")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runEdit(ctx, args[0])
	},
}

func init() {
	editCmd.Flags().StringVarP(&editFile, "file", "f", "", "local config file to watch (required)")
	editCmd.Flags().StringVar(&editPreview, "preview", "", "HTML file rewritten after every change")
	editCmd.Flags().DurationVar(&editSaveDelay, "save-delay", editor.DefaultSaveDelay, "auto-save delay after the last change")
	editCmd.Flags().BoolVar(&editPublish, "publish-on-exit", false, "publish when the session ends")

	rootCmd.AddCommand(editCmd)
}

func runEdit(ctx context.Context, projectID string) error {
	c, err := authedClient(ctx)
	if err != nil {
		return err
	}
	log := newLogger()

	ed, err := editor.Open(ctx, c, projectID, editor.Options{
		SaveDelay: editSaveDelay,
		Logger:    &log,
		OnSaved: func(s editor.State) {
			fmt.Printf("[%s] draft saved\n", time.Now().Format("15:04:05"))
		},
		OnError: func(op string, err error) {
			fmt.Fprintf(os.Stderr, "[%s] %s failed: %v\n", time.Now().Format("15:04:05"), op, err)
		},
	})
	if err != nil {
		return projectError(err, projectID)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := ed.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "final save failed: %v\n", err)
		}
	}()

	if err := ensureEditFile(ed.Config()); err != nil {
		return err
	}

	title := ed.ProjectName()
	if editPreview != "" {
		ed.Subscribe(func(cfg *siteconfig.SiteConfig) {
			writePreview(ctx, title, cfg)
		})
		writePreview(ctx, title, ed.Config())
	}

	w, err := watcher.New(editFile, &watcher.Options{
		PollInterval: time.Second,
		Settle:       100 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(ctx); err != nil {
		return err
	}

	commands := readCommands(ctx)
	fmt.Printf("Editing %q from %s. Type publish, status or quit.\n", title, w.Path())

	for {
		select {
		case <-ctx.Done():
			return finishEdit(ed)
		case change, ok := <-w.Changes():
			if !ok {
				return finishEdit(ed)
			}
			applyChange(ed, change)
		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			switch strings.TrimSpace(line) {
			case "":
			case "publish", "p":
				publishSession(ctx, ed)
			case "status", "s":
				printState(ed.State())
			case "quit", "q", "exit":
				return finishEdit(ed)
			default:
				fmt.Println("Unknown command. Type publish, status or quit.")
			}
		}
	}
}

// ensureEditFile seeds the local file from the draft when it is missing.
func ensureEditFile(cfg *siteconfig.SiteConfig) error {
	if _, err := os.Stat(editFile); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	data, err := encodeConfig(cfg, isYAML(editFile))
	if err != nil {
		return err
	}
	if err := writeFileAtomic(editFile, data); err != nil {
		return fmt.Errorf("create %s: %w", editFile, err)
	}
	fmt.Printf("Wrote current draft to %s\n", editFile)
	return nil
}

func applyChange(ed *editor.Editor, change watcher.Change) {
	if change.Err != nil {
		fmt.Fprintf(os.Stderr, "watch %s: %v\n", change.Path, change.Err)
		return
	}
	cfg, err := decodeConfig(change.Data, isYAML(change.Path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignored change: %v\n", err)
		return
	}
	if err := ed.ReplaceConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ignored change: %v\n", err)
		return
	}
	PrintVerbose("applied change from %s", change.Path)
}

func publishSession(ctx context.Context, ed *editor.Editor) {
	res, err := ed.Publish(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	fmt.Printf("%s Live at %s\n", res.Message, res.LiveURL)
}

func finishEdit(ed *editor.Editor) error {
	if !editPublish {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := ed.Publish(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s Live at %s\n", res.Message, res.LiveURL)
	return nil
}

func printState(s editor.State) {
	status := "draft only"
	switch {
	case s.Published && s.HasUnpublishedChanges:
		status = "published, with unpublished changes"
	case s.Published:
		status = "published"
	}
	fmt.Printf("Status:   %s\n", status)
	if s.LiveURL != "" {
		fmt.Printf("Live URL: %s\n", s.LiveURL)
	}
	fmt.Printf("Saves:    %d ok, %d failed", s.Saves, s.FailedSaves)
	if s.PendingSave {
		fmt.Print(", changes pending")
	}
	fmt.Println()
	if s.LastError != nil {
		fmt.Printf("Last error: %v\n", s.LastError)
	}
}

func writePreview(ctx context.Context, title string, cfg *siteconfig.SiteConfig) {
	page, err := preview.RenderPage(ctx, title, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render preview: %v\n", err)
		return
	}
	if err := writeFileAtomic(editPreview, page); err != nil {
		fmt.Fprintf(os.Stderr, "write preview: %v\n", err)
	}
}

// readCommands delivers stdin lines until EOF or ctx is done.
func readCommands(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
