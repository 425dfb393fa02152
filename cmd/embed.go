package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/spf13/cobra"

	"github.com/agentic-research/facet/api"
	"github.com/agentic-research/facet/internal/fragments"
	"github.com/agentic-research/facet/internal/locations"
)

var embedOnly string

var embedCmd = &cobra.Command{
	Use:   "embed [pack-file]",
	Short: "Decode a fragment pack and embed its locations into the database",
	Long: `Parses the packed geometry-fragment stream, extracts per-element
translation and bounding box, and upserts them into the fragment_locations
side table in a single transaction. After embedding, spatial queries read the
side table directly; the pack file is not needed again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read pack %s: %w", args[0], err)
		}

		decoded, err := decodePack(buf)
		if err != nil {
			return err
		}

		store, err := locations.Open(dbPath, locations.WithLogger(newLogger()))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }() // safe to ignore

		if err := store.Embed(cmd.Context(), decoded); err != nil {
			return err
		}
		fmt.Printf("Embedded %d locations.\n", len(decoded))
		return nil
	},
}

func decodePack(buf []byte) (map[int64]api.Location, error) {
	if embedOnly == "" {
		return fragments.Decode(buf)
	}
	want := roaring.New()
	for _, field := range strings.Split(embedOnly, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", field, err)
		}
		want.Add(uint32(id))
	}
	return fragments.DecodeFiltered(buf, want)
}

func init() {
	embedCmd.Flags().StringVar(&embedOnly, "only", "", "comma-separated dbIDs; decode and embed just these")
	rootCmd.AddCommand(embedCmd)
}
