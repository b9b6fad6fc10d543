package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/your-org/idscan/internal/history"
	"github.com/your-org/idscan/internal/scan"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true,
}

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Add every face image in a directory to the gallery",
	Long: `Detect the faces in every image of a directory and add their descriptors
to the gallery, then save the gallery to the configured backend.

The file name supplies the identity: "LABEL_Full Name.jpg" enrols LABEL
with that full name; a name without "_" is used as both label and full name.

Examples:
  idscanctl enroll --dir ./cards --group "Class 10A"`,
	RunE: runEnroll,
}

func init() {
	enrollCmd.Flags().String("dir", "", "directory of face images")
	enrollCmd.Flags().String("group", "", "group to enrol the faces in")
	_ = enrollCmd.MarkFlagRequired("dir")
	_ = enrollCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	group, _ := cmd.Flags().GetString("group")
	ctx := cmd.Context()

	files, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in %s", dir)
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

	// Enrolment never touches history; an in-memory log satisfies the service.
	svc := scan.NewService(detector, store, history.NewLog(history.NewMemoryKV()), nil, scan.Options{
		ScanThreshold:  cfg.Matching.ScanThreshold,
		AdminThreshold: cfg.Matching.AdminThreshold,
	})

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped int
	var failures []string
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		label, fullName := identityFromFile(path)

		img, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			_ = bar.Add(1)
			continue
		}

		_, err = svc.EnrollImage(ctx, scan.EnrollRequest{Label: label, FullName: fullName, Group: group}, img)
		var verr *scan.ValidationError
		switch {
		case errors.As(err, &verr):
			skipped++
			failures = append(failures, fmt.Sprintf("%s: %s", filepath.Base(path), verr.Msg))
		case err != nil:
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		default:
			enrolled++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	for _, f := range failures {
		fmt.Fprintln(os.Stderr, "  skipped", f)
	}
	fmt.Printf("Enrolled %d of %d images (%d without a usable face)\n", enrolled, len(files), skipped)

	if enrolled == 0 {
		return nil
	}
	out := store.Flush(ctx)
	fmt.Println(out.Message)
	if !out.Success {
		return errors.New("gallery not saved")
	}
	return nil
}

// listImages returns the image files directly inside dir, sorted by name.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// identityFromFile splits "LABEL_Full Name.ext" into label and full name.
func identityFromFile(path string) (label, fullName string) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	label, fullName, found := strings.Cut(stem, "_")
	label = strings.TrimSpace(label)
	fullName = strings.TrimSpace(fullName)
	if !found || fullName == "" {
		fullName = label
	}
	return label, fullName
}
