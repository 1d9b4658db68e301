// Package cmd contains the CLI commands for sitectl.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/sitecraft/internal/client"
	"github.com/good-yellow-bee/sitecraft/internal/session"
	"github.com/good-yellow-bee/sitecraft/pkg/config"
)

const defaultServer = "http://localhost:8080"

var (
	// Used for flags
	serverURL   string
	sessionPath string
	verbose     bool
	output      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitectl",
	Short: "sitectl - edit and publish sitecraft sites",
	Long: `sitectl manages sitecraft projects from the terminal.

It signs in to a sitecraft server, edits a project's navbar and hero,
auto-saves drafts while you work and publishes the result as a live site.

Examples:
  # Sign in
  sitectl login --email ada@example.com

  # Create a project and edit it from a local YAML file
  sitectl project create --name "Ada's Bakery"
  sitectl edit <project-id> --file site.yaml --preview preview.html

  # Publish the current draft
  sitectl publish <project-id>`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	server := os.Getenv("SITECTL_SERVER")
	if server == "" {
		server = defaultServer
	}

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", server, "sitecraft server URL (env SITECTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", "", "session file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// newLogger returns the CLI logger; debug output only with --verbose.
func newLogger() zerolog.Logger {
	lvl := zerolog.WarnLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func openSessionStore() (*session.Store, error) {
	path := sessionPath
	if path == "" {
		var err error
		path, err = session.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("locate session file: %w", err)
		}
	}
	return session.NewStore(path), nil
}

// newClient builds a client for --server without looking at the stored session.
func newClient() (*client.Client, *session.Store, error) {
	store, err := openSessionStore()
	if err != nil {
		return nil, nil, err
	}
	log := newLogger()
	return client.New(serverURL, store, client.Options{Logger: &log, UserAgent: config.UserAgent("sitectl")}), store, nil
}

// authedClient is newClient for commands that need a session. A session
// issued by a different server is rejected; an expired access token is
// refreshed first.
func authedClient(ctx context.Context) (*client.Client, error) {
	c, store, err := newClient()
	if err != nil {
		return nil, err
	}
	sess, err := store.Get()
	if errors.Is(err, session.ErrNoSession) {
		return nil, fmt.Errorf("not signed in; run 'sitectl login' first")
	}
	if err != nil {
		return nil, err
	}
	if sess.Server != "" && sess.Server != c.BaseURL() {
		return nil, fmt.Errorf("signed in to %s, not %s; run 'sitectl login' first", sess.Server, c.BaseURL())
	}
	if sess.Expired(time.Now().Add(10 * time.Second)) {
		PrintVerbose("access token expired, refreshing")
		if _, err := c.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonOutput() bool {
	return output == "json"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
