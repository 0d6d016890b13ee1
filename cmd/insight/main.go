package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Telegram chat insight agent",
	Long: `insight exports monitored Telegram chats with tdl, summarizes them with an LLM
and delivers the result through a Telegram bot.

Each subcommand runs one process of the deployment:
  insight bot        Telegram bot, status listener and admin HTTP
  insight worker     export and summarize jobs
  insight scheduler  periodic sweep over active subscriptions`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.yaml", "path to YAML config file (optional)")
	rootCmd.PersistentFlags().Bool("dev", false, "developer mode: console logs, unredacted secrets")
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	rootCmd.AddCommand(botCmd, workerCmd, schedulerCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
