package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List clients signed in to your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		list, err := c.Sessions(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(os.Stdout, list)
		}
		if len(list) == 0 {
			fmt.Println("No active sessions.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCLIENT\tREFRESHED\tEXPIRES")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, truncate(s.Client, 40), formatTime(&s.RefreshedAt), formatTime(&s.ExpiresAt))
		}
		return w.Flush()
	},
}

var sessionsRevokeCmd = &cobra.Command{
	Use:   "revoke <session-id>",
	Short: "Sign a client out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient(cmd.Context())
		if err != nil {
			return err
		}
		if err := c.RevokeSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Session revoked.")
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsRevokeCmd)
	rootCmd.AddCommand(sessionsCmd)
}
