package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "timetable-sync",
	Short: "timetable-sync turns a photographed timetable into an importable calendar",
	Long: `Timetable Sync Pro extracts class entries out of an uploaded
timetable image, lets the user correct them, and exports the week as a
recurring iCalendar file`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
