package cmd

import (
	"os"

	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/utils"
	"github.com/spf13/cobra"
)

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "catdex",
	Short: "A small catalog of cats",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.InitConfigFrom(envFile)
		cfg := config.Get()
		utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	},
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file to load before reading environment variables")
}
