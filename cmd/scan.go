package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/facet/internal/propdb"
)

var scanAll bool

var scanCmd = &cobra.Command{
	Use:   "scan [category] [displayName]",
	Short: "Stream one attribute (or the whole store) across all elements",
	Long: `Streams (dbID, value) pairs for one attribute, or with --all every
(dbID, key, value) triple in the store. Rows are emitted one at a time, so
this stays flat in memory on arbitrarily large models.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := propdb.Open(dbPath, propdb.WithLogger(newLogger()))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }() // safe to ignore

		ctx := cmd.Context()
		if scanAll {
			cur, err := db.StreamAll(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = cur.Close() }() // safe to ignore
			for cur.Next() {
				t := cur.Triple()
				fmt.Printf("%d\t%s\t%s\n", t.DBID, t.Key, t.Value)
			}
			return cur.Err()
		}

		if len(args) < 1 {
			return fmt.Errorf("a category is required unless --all is set")
		}
		category := args[0]
		name := ""
		if len(args) == 2 {
			name = args[1]
		}

		cur, err := db.StreamAttribute(ctx, category, name)
		if err != nil {
			return err
		}
		defer func() { _ = cur.Close() }() // safe to ignore
		for cur.Next() {
			pair := cur.Pair()
			fmt.Printf("%d\t%s\n", pair.DBID, pair.Value)
		}
		return cur.Err()
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "stream every attribute of every element")
	rootCmd.AddCommand(scanCmd)
}
