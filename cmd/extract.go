/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction"
	"github.com/s4sahiko/Timetable-Sync-Pro/ics"
	"github.com/s4sahiko/Timetable-Sync-Pro/internal/config"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [image]...",
	Short: "One-off extraction of timetable images into .ics files",
	Long: `Runs the extraction pipeline over each given image and writes a
sibling .ics file, skipping the review step entirely`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Error("Could not load config: ", err)
			return
		}
		anchorFlag, _ := cmd.Flags().GetString("anchor")
		tz, _ := cmd.Flags().GetString("tz")
		if tz == "" {
			tz = cfg.Timezone
		}
		anchor := time.Now()
		if anchorFlag != "" {
			anchor, err = time.Parse(time.DateOnly, anchorFlag)
			if err != nil {
				log.Error("Invalid anchor date, want YYYY-MM-DD: ", err)
				return
			}
		}

		orch := extraction.GetConfiguredOrchestrator(
			cfg.GeminiEndpoint, cfg.GeminiModel, cfg.RequestRetryCount)
		ctx := cmd.Context()

		var eg errgroup.Group
		for _, imagePath := range args {
			eg.Go(func() error {
				return extractOne(ctx, orch, cfg, imagePath, anchor, tz)
			})
		}
		if err := eg.Wait(); err != nil {
			log.Error("Extraction run had failures: ", err)
			os.Exit(1)
		}
	},
}

func extractOne(
	ctx context.Context,
	orch extraction.Orchestrator,
	cfg *config.Config,
	imagePath string,
	anchor time.Time,
	tz string,
) error {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", imagePath, err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))

	schedule, warnings, err := orch.ProcessImage(ctx, image, mimeType)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", imagePath, err)
	}
	for _, warning := range warnings {
		log.Warnf("%s: %s", imagePath, warning)
	}

	document, err := ics.Export(schedule, anchor, ics.Options{
		Timezone:     tz,
		CalendarName: cfg.CalendarName,
	})
	if err != nil {
		return fmt.Errorf("exporting %s: %w", imagePath, err)
	}

	outPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".ics"
	if err := os.WriteFile(outPath, document, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	log.Infof("%s: wrote %d entries to %s", imagePath, schedule.Len(), outPath)
	return nil
}

func init() {
	extractCmd.Flags().StringP("config", "c", "config.yaml", "Path to the configuration file")
	extractCmd.Flags().StringP("anchor", "a", "", "First occurrence reference date (YYYY-MM-DD), defaults to today")
	extractCmd.Flags().StringP("tz", "t", "", "IANA timezone for event times, defaults to the configured one")
	rootCmd.AddCommand(extractCmd)
}
