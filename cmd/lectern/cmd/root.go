package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=v1.2.3".
var Version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	apiURL     string
	dataDir    string
	memory     bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "lectern",
		Short: "Lectern is a reader and editor for a remote Q&A content service",
		Long: `Lectern signs in to a remote Q&A API, keeps the session across runs and
caches topics, questions and answers locally. Use the subcommands for one-off
reads and edits, or "lectern serve" for a local HTTP interface.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to lectern.yaml (default: search . and the user config dir)")
	root.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "Base URL of the remote API (overrides api.baseURL)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Directory for the session database (overrides storage.path)")
	root.PersistentFlags().BoolVar(&flags.memory, "memory", false, "Keep the session in memory only")

	root.AddCommand(
		newLoginCmd(flags),
		newLogoutCmd(flags),
		newStatusCmd(flags),
		newTopicsCmd(flags),
		newQuestionsCmd(flags),
		newAnswersCmd(flags),
		newServeCmd(flags),
		newVersionCmd(),
	)
	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
