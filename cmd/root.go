package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "langstats",
		Short: "Per-language line counts from your GitHub history",
		Long: `Computes how many lines you added and removed per programming language
over time, from the commit history of your GitHub repositories.

Series are cached and served over HTTP by 'langstats serve', or printed
with 'langstats stats'.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	addGlobalFlags(rootCmd, opts)

	rootCmd.AddCommand(NewCmdServe(opts))
	rootCmd.AddCommand(NewCmdStats(opts))
	rootCmd.AddCommand(NewCmdRefresh(opts))
	rootCmd.AddCommand(NewCmdStatus(opts))
	rootCmd.AddCommand(NewCmdCache(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdRateLimit(opts))
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}

// addGlobalFlags adds flags shared by every command.
func addGlobalFlags(cmd *cobra.Command, opts *Options) {
	flags := cmd.PersistentFlags()
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
	flags.StringVarP(&opts.Username, "username", "u", "", "GitHub login whose commits are counted")
	flags.StringVar(&opts.SkillsFile, "skills", "", "Skills file (YAML or JSON) listing tracked languages")
	flags.StringVar(&opts.SkillsDSN, "skills-dsn", "", "PostgreSQL DSN of the skills table")
	flags.StringVar(&opts.Snapshot, "snapshot", "", "Snapshot store (none, file, redis)")
}
