package cmd

import (
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/facet/api"
	"github.com/agentic-research/facet/internal/propdb"
)

var propsDirect bool

var propsCmd = &cobra.Command{
	Use:   "props [dbID]",
	Short: "Print the resolved properties of one element",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("parse dbID %q: %w", args[0], err)
		}

		db, err := propdb.Open(dbPath, propdb.WithLogger(newLogger()))
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }() // safe to ignore

		ctx := cmd.Context()
		var props map[api.AttrKey]api.Value
		if propsDirect {
			props, err = db.DirectProperties(ctx, dbID)
		} else {
			props, err = db.MergedProperties(ctx, dbID)
		}
		if err != nil {
			return err
		}

		extID, err := db.ExternalID(ctx, dbID)
		if err != nil {
			return err
		}

		// Keys stringify only here, at the presentation boundary.
		out := map[string]any{
			"dbId":       dbID,
			"properties": propertyMap(props),
		}
		if extID != "" {
			out["externalId"] = extID
		}
		fmt.Println(oj.JSON(out, 2))
		return nil
	},
}

// propertyMap flattens typed property values into plain JSON-encodable Go
// values keyed by the external "{category}_{displayName}" form.
func propertyMap(props map[api.AttrKey]api.Value) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k.String()] = v.Interface()
	}
	return out
}

func init() {
	propsCmd.Flags().BoolVar(&propsDirect, "direct", false, "skip parent inheritance, direct properties only")
	rootCmd.AddCommand(propsCmd)
}
