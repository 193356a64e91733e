package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the tailortalk application
var rootCmd = &cobra.Command{
	Use:   "tailortalk",
	Short: "Books meetings on your calendar through a conversation",
	Long: `tailortalk is a meeting scheduling assistant. It understands requests such
as "find me 30 minutes tomorrow afternoon", offers free slots from your
calendar and books the one you confirm.

It can run as:
  - An HTTP chat API with an MCP endpoint (serve)
  - An MCP server over stdio for AI assistants (serve --transport stdio)
  - An interactive terminal conversation (chat)`,
	SilenceUsage: true,
}

var (
	// version will be set by main
	version = "dev"

	configPath string
	debugMode  bool
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tailortalk version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <user config dir>/tailortalk/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
