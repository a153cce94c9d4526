package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	logo    = "\n" +
		"  _   _                        _ __          __      _       _\n" +
		" | |_| |__  _ __ ___  __ _  __| |\\ \\        / /_ _| |_ ___| |__\n" +
		" | __| '_ \\| '__/ _ \\/ _` |/ _` | \\ \\  /\\  / / _` | __/ __| '_ \\\n" +
		" | |_| | | | | |  __/ (_| | (_| |  \\ \\/  \\/ / (_| | || (__| | | |\n" +
		"  \\__|_| |_|_|  \\___|\\__,_|\\__,_|   \\_/\\_/ \\__,_|\\__\\___|_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "threadwatch",
	Short: "Chat thread digest and retrieval system",
	Long:  color.CyanString(logo) + "\nIngests chat events, enriches threads, and delivers personalized ranked digests.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}
