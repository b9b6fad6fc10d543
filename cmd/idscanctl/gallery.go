package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/idscan/internal/gallery"
	"github.com/your-org/idscan/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the stored gallery with a JSON gallery file",
	Long: `Read a gallery file in the face_recognition_data.json format and write it
to the configured backend, replacing whatever is stored there. Records that
repeat a (label, group) pair are merged before writing.

Examples:
  idscanctl import face_recognition_data.json
  idscanctl --config prod.yaml import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		gw, closeFn, err := openGateway(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := importGallery(cmd.Context(), gw, data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		fmt.Println(out.Message)
		if !out.Success {
			return errors.New("import failed")
		}
		return nil
	},
}

// importGallery decodes a gallery file into a fresh store and flushes it,
// so duplicate (label, group) records reach the backend merged.
func importGallery(ctx context.Context, gw gallery.Persister, data []byte) (storage.Outcome, error) {
	records, err := storage.Decode(data)
	if err != nil {
		return storage.Outcome{}, err
	}
	store := gallery.NewStore(gw)
	store.Replace(records)
	return store.Flush(ctx), nil
}

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write the stored gallery to a JSON gallery file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, closeFn, err := openGateway(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		records, out := gw.Load(cmd.Context())
		fmt.Fprintln(os.Stderr, out.Message)
		if !out.Success {
			return errors.New("export failed")
		}
		data, err := storage.Encode(records)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", args[0], err)
		}
		fmt.Printf("Exported %d records to %s\n", len(records), args[0])
		return nil
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups [SEARCH]",
	Short: "List gallery groups and their labels",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := loadStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		term := ""
		if len(args) == 1 {
			term = args[0]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "GROUP\tLABEL\tFULL NAME\tDESCRIPTORS")
		for _, group := range store.SearchGroups(term) {
			for _, label := range store.Labels(group) {
				rec, _ := store.Find(label, group)
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", group, label, rec.FullName, len(rec.Descriptors))
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(importCmd, exportCmd, groupsCmd)
}
