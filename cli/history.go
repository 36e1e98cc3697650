package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"concierge/config"
	"concierge/storage"
)

var searchQuery string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id> [path]",
	Short: "Export a conversation as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runHistoryExport,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a saved conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runHistoryRename,
}

func init() {
	historyCmd.Flags().StringVarP(&searchQuery, "search", "s", "", "show messages containing this text")
	historyCmd.AddCommand(historyExportCmd, historyDeleteCmd, historyRenameCmd)
	rootCmd.AddCommand(historyCmd)
}

func openTranscripts() (*storage.TranscriptStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewTranscriptStore(cfg.GetTranscriptsDir())
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openTranscripts()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if q := strings.TrimSpace(searchQuery); q != "" {
		matches, err := store.Search(q)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintf(out, "No messages match %q\n", q)
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%s  %s #%d %s: %s\n", m.SnapshotID, m.SnapshotName, m.MessageIndex, m.Role, m.Preview)
		}
		return nil
	}

	list, err := store.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No saved conversations")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMESSAGES\tUPDATED")
	for _, m := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, m.Name, m.MessageCount, m.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openTranscripts()
	if err != nil {
		return err
	}

	var path string
	if len(args) == 2 {
		path = config.ExpandPath(args[1])
	} else {
		snap, err := store.Load(args[0])
		if err != nil {
			return err
		}
		path = storage.GenerateExportPath(config.GetHomeDir(), snap.Name)
	}

	if err := store.Export(args[0], path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, err := openTranscripts()
	if err != nil {
		return err
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func runHistoryRename(cmd *cobra.Command, args []string) error {
	store, err := openTranscripts()
	if err != nil {
		return err
	}
	name := strings.Join(args[1:], " ")
	if err := store.Rename(args[0], name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], name)
	return nil
}
