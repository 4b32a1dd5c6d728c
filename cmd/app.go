/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// appCmd represents the app command
var appCmd = &cobra.Command{
	Use:   "app",
	Short: "used to run the timetable sync service",
	Long: `The timetable sync service is the web app handling uploads,
review edits and calendar downloads (this command is not ran directly)`,
}

func init() {
	rootCmd.AddCommand(appCmd)
}
