package cmd

import (
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/facet/api"
	"github.com/agentic-research/facet/internal/locations"
	"github.com/agentic-research/facet/internal/propdb"
)

var (
	locStream bool
	locFind   []string
)

var locationsCmd = &cobra.Command{
	Use:   "locations [dbID]",
	Short: "Query embedded fragment locations",
	Long: `Without arguments, prints the embedded location count. With a dbID,
prints that element's merged properties joined with its location. --stream
dumps the whole side table; --find category displayName value lists the
placement of every element matching that property.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := locations.Open(dbPath, locations.WithLogger(newLogger()))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }() // safe to ignore

		ctx := cmd.Context()
		switch {
		case locStream:
			cur, err := store.Stream(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cur.Close() }() // safe to ignore
			for cur.Next() {
				id, loc := cur.Entry()
				fmt.Printf("%d\t%s\n", id, formatLocation(loc))
			}
			return cur.Err()

		case len(locFind) == 3:
			db, err := propdb.Open(dbPath, propdb.WithLogger(newLogger()))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }() // safe to ignore

			found, err := store.FindByProperty(ctx, db, locFind[0], locFind[1], locFind[2])
			if err != nil {
				return err
			}
			for _, p := range found {
				fmt.Printf("%d\t%s\n", p.DBID, formatLocation(p.Location))
			}
			return nil

		case len(args) == 1:
			dbID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse dbID %q: %w", args[0], err)
			}
			db, err := propdb.Open(dbPath, propdb.WithLogger(newLogger()))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }() // safe to ignore

			p, err := store.PlacementFor(ctx, db, dbID)
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Println("no location for", dbID)
				return nil
			}
			fmt.Println(oj.JSON(map[string]any{
				"dbId":       p.DBID,
				"properties": propertyMap(p.Properties),
				"location":   locationMap(p.Location),
			}, 2))
			return nil

		default:
			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d locations embedded\n", n)
			return nil
		}
	},
}

func formatLocation(loc api.Location) string {
	return fmt.Sprintf("pos(%g, %g, %g) bbox(%g, %g, %g)-(%g, %g, %g)",
		loc.X, loc.Y, loc.Z,
		loc.MinX, loc.MinY, loc.MinZ,
		loc.MaxX, loc.MaxY, loc.MaxZ)
}

func locationMap(loc api.Location) map[string]any {
	return map[string]any{
		"position": []any{loc.X, loc.Y, loc.Z},
		"min":      []any{loc.MinX, loc.MinY, loc.MinZ},
		"max":      []any{loc.MaxX, loc.MaxY, loc.MaxZ},
	}
}

func init() {
	locationsCmd.Flags().BoolVar(&locStream, "stream", false, "dump every embedded location")
	locationsCmd.Flags().StringSliceVar(&locFind, "find", nil, "category,displayName,value property filter")
	rootCmd.AddCommand(locationsCmd)
}
