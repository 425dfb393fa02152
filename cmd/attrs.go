package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/facet/internal/propdb"
)

var attrsIndex bool

var attrsCmd = &cobra.Command{
	Use:   "attrs",
	Short: "List attribute categories defined in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := propdb.Open(dbPath, propdb.WithLogger(newLogger()))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }() // safe to ignore

		ctx := cmd.Context()
		if attrsIndex {
			index, err := db.CategoryIndex(ctx)
			if err != nil {
				return err
			}
			fmt.Println(oj.JSON(index, 2))
			return nil
		}

		categories, err := db.Categories(ctx)
		if err != nil {
			return err
		}
		for _, c := range categories {
			fmt.Println(c)
		}
		return nil
	},
}

func init() {
	attrsCmd.Flags().BoolVar(&attrsIndex, "index", false, "print the full category → display-name index as JSON")
	rootCmd.AddCommand(attrsCmd)
}
