package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/sitecraft/internal/session"
)

var (
	authName  string
	authEmail string
)

// stdin is shared so consecutive prompts on piped input do not lose
// buffered lines.
var stdin = bufio.NewReader(os.Stdin)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Long: `Create an account on the server and sign in with it.

The password is prompted interactively so it never lands in shell history.

Example:
  sitectl signup --name "Ada Lovelace" --email ada@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if authName == "" || authEmail == "" {
			return fmt.Errorf("--name and --email are required")
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password confirmation: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		c, _, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if _, err := c.Signup(ctx, authName, authEmail, password); err != nil {
			return fmt.Errorf("signup: %w", err)
		}
		sess, err := c.Signin(ctx, authEmail, password)
		if err != nil {
			return fmt.Errorf("signin: %w", err)
		}
		fmt.Printf("Account created. Signed in as %s (%s).\n", sess.Identity().Name, sess.Identity().Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a sitecraft server",
	Long: `Sign in and store the session for later commands.

Example:
  sitectl login --email ada@example.com --server https://sitecraft.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if authEmail == "" {
			return fmt.Errorf("--email is required")
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		c, _, err := newClient()
		if err != nil {
			return err
		}
		sess, err := c.Signin(cmd.Context(), authEmail, password)
		if err != nil {
			return fmt.Errorf("signin: %w", err)
		}
		fmt.Printf("Signed in to %s as %s (%s).\n", c.BaseURL(), sess.Identity().Name, sess.Identity().Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, store, err := newClient()
		if err != nil {
			return err
		}
		err = c.Logout(cmd.Context())
		if errors.Is(err, session.ErrNoSession) {
			fmt.Println("Not signed in.")
			return nil
		}
		if err != nil {
			// The local session is gone either way.
			PrintVerbose("server logout failed: %v", err)
		}
		fmt.Printf("Signed out. Removed %s.\n", store.Path())
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		sess, err := c.Session(ctx)
		if err != nil {
			return err
		}
		user, err := c.Me(ctx)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(os.Stdout, user)
		}
		fmt.Printf("Name:    %s\n", user.Name)
		fmt.Printf("Email:   %s\n", user.Email)
		fmt.Printf("Role:    %s\n", user.Role)
		fmt.Printf("User ID: %s\n", user.ID)
		fmt.Printf("Server:  %s\n", sess.Server)
		return nil
	},
}

func init() {
	signupCmd.Flags().StringVar(&authName, "name", "", "display name (required)")
	signupCmd.Flags().StringVar(&authEmail, "email", "", "email address (required)")
	loginCmd.Flags().StringVar(&authEmail, "email", "", "email address (required)")

	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// promptPassword reads a password without echo. Piped input is read as a
// single line.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	password, err := stdin.ReadString('\n')
	if err != nil && password == "" {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
