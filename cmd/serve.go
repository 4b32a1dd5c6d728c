/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/s4sahiko/Timetable-Sync-Pro/internal/config"
	api "github.com/s4sahiko/Timetable-Sync-Pro/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the web app",
	Long:  `Runs the web app`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			slog.Error("Could not load config", "err", err)
			return
		}
		api.Serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringP("config", "c", "config.yaml", "Path to the configuration file")
	appCmd.AddCommand(serveCmd)
}
