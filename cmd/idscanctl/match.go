package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/idscan/internal/capture"
	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/models"
	"github.com/your-org/idscan/internal/scan"
)

var matchCmd = &cobra.Command{
	Use:   "match IMAGE",
	Short: "Match the faces in an image against the gallery (nothing is recorded)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		if !cmd.Flags().Changed("threshold") {
			threshold = cfg.Matching.AdminThreshold
		}
		ctx := cmd.Context()

		img, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		store, closeStore, err := loadStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		detector, closeDetector, err := openDetector()
		if err != nil {
			return err
		}
		defer closeDetector()

		svc := scan.NewService(detector, store, history.NewLog(history.NewMemoryKV()), nil, scan.Options{
			ScanThreshold:  cfg.Matching.ScanThreshold,
			AdminThreshold: threshold,
		})
		results, err := svc.MatchImage(ctx, img)
		if err != nil {
			return err
		}
		return printResults(results)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Capture one frame from a camera, match it and record the scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			source = cfg.Capture.Source
		}
		ctx := cmd.Context()

		store, closeStore, err := loadStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		detector, closeDetector, err := openDetector()
		if err != nil {
			return err
		}
		defer closeDetector()

		scanLog, closeHistory, err := openHistory(false)
		if err != nil {
			return err
		}
		defer closeHistory()

		svc := scan.NewService(detector, store, scanLog, nil, scan.Options{
			ScanThreshold:  cfg.Matching.ScanThreshold,
			AdminThreshold: cfg.Matching.AdminThreshold,
		})
		if err := svc.CanScan(); err != nil {
			return err
		}

		grabber := &capture.Grabber{Width: cfg.Capture.Width}
		target := source
		if capture.IsYouTube(source) {
			if target, err = capture.ResolveYouTubeURL(ctx, source); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stderr, "Capturing from %s...\n", source)
		frame, err := grabber.CaptureFrame(ctx, target)
		if err != nil {
			return err
		}

		entry, err := svc.ScanImage(ctx, source, frame)
		if err != nil {
			return err
		}
		if len(entry.Results) == 0 {
			fmt.Println("No faces detected.")
			return nil
		}
		return printResults(entry.Results)
	},
}

func init() {
	matchCmd.Flags().Float64("threshold", 0.6, "maximum distance for a match (default: matching.admin_threshold)")
	scanCmd.Flags().String("source", "", "camera device, stream URL or file (default: capture.source)")
	rootCmd.AddCommand(matchCmd, scanCmd)
}

func printResults(results []models.MatchResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tLABEL\tFULL NAME\tGROUP\tDISTANCE")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Label, r.FullName, r.Group, formatDistance(r))
	}
	return w.Flush()
}

func formatDistance(r models.MatchResult) string {
	if !r.Compared() {
		return "-"
	}
	return fmt.Sprintf("%.2f", r.Distance)
}
