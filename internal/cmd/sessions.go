package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage council sessions",
	Long:  `List and delete persisted council sessions.`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions",
	RunE:  listSessions,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteSession,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openStore() (*session.FileStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return session.NewFileStore(cfg.Paths.ResolveSessionDir())
}

func listSessions(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	infos, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-38s %-16s %-10s %-17s %s\n",
		"SESSION", "PHASE", "REVISIONS", "UPDATED", "PROPOSAL")
	for _, info := range infos {
		// Plain phase text keeps the columns aligned; ANSI color codes
		// would break the fixed-width formatting.
		fmt.Fprintf(w, "%-38s %-16s %-10d %-17s %s\n",
			info.SessionID,
			string(info.Phase),
			info.RevisionCount,
			info.UpdatedAt.Local().Format("2006-01-02 15:04"),
			info.Excerpt)
	}
	return nil
}

func deleteSession(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	sessionID := args[0]
	if !store.Exists(cmd.Context(), sessionID) {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if err := store.Delete(cmd.Context(), sessionID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", sessionID)
	return nil
}
