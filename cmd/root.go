package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the officebot application
var rootCmd = &cobra.Command{
	Use:   "officebot",
	Short: "Chat bot for attendance tracking and meeting scheduling",
	Long: `officebot is a chat bot that records employee logins and logouts,
schedules Zoom and Google Meet meetings through a short conversation and
answers questions through OpenAI.

It can run against:
  - Discord (default)
  - A local console
  - An MCP (Model Context Protocol) client over stdio`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "officebot version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newAuthURLCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
