package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"concierge/storage"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show stored preferences",
	Long: `Preferences override the [tools] section of config.toml, e.g.

  concierge prefs set tools.web_search true
  concierge prefs set approval.global false`,
	Args: cobra.NoArgs,
	RunE: runPrefsList,
}

var prefsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefsGet,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a preference",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsSet,
}

var prefsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a preference so config.toml applies again",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefsUnset,
}

func init() {
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd, prefsUnsetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func openPreferences() (*storage.PreferenceStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return storage.NewPreferenceStore(cfg.DataDir())
}

func runPrefsList(cmd *cobra.Command, args []string) error {
	prefs, err := openPreferences()
	if err != nil {
		return err
	}
	defer prefs.Close()

	list, err := prefs.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No preferences set")
		return nil
	}
	for _, p := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", p.Key, p.Value)
	}
	return nil
}

func runPrefsGet(cmd *cobra.Command, args []string) error {
	if !storage.ValidKey(args[0]) {
		return fmt.Errorf("%w: %s", storage.ErrUnknownPreference, args[0])
	}
	prefs, err := openPreferences()
	if err != nil {
		return err
	}
	defer prefs.Close()

	value, ok, err := prefs.Get(args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "(unset)")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	prefs, err := openPreferences()
	if err != nil {
		return err
	}
	defer prefs.Close()

	if err := prefs.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s saved\n", args[0])
	return nil
}

func runPrefsUnset(cmd *cobra.Command, args []string) error {
	if !storage.ValidKey(args[0]) {
		return fmt.Errorf("%w: %s", storage.ErrUnknownPreference, args[0])
	}
	prefs, err := openPreferences()
	if err != nil {
		return err
	}
	defer prefs.Close()

	if err := prefs.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", args[0])
	return nil
}
