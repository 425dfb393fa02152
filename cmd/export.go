package cmd

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/facet/internal/propdb"
)

var exportWorkers int

var exportCmd = &cobra.Command{
	Use:   "export [output.json]",
	Short: "Export merged properties of every element to JSON",
	Long: `Resolves merged properties for every element and writes one JSON
object keyed by dbID. A read-only database handle is not safe for overlapping
queries, so each worker opens its own handle and takes a slice of the id
space.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		db, err := propdb.Open(dbPath, propdb.WithLogger(log))
		if err != nil {
			return err
		}
		ids, err := db.EntityIDs(cmd.Context())
		closeErr := db.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}

		workers := exportWorkers
		if workers < 1 {
			workers = 1
		}
		if workers > len(ids) {
			workers = len(ids)
		}

		var (
			mu  sync.Mutex
			out = make(map[string]any, len(ids))
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		for w := 0; w < workers; w++ {
			lo := w * len(ids) / workers
			hi := (w + 1) * len(ids) / workers
			slice := ids[lo:hi]
			g.Go(func() error {
				// One handle per worker: overlapping queries on a
				// shared handle are not part of the contract.
				wdb, err := propdb.Open(dbPath, propdb.WithLogger(log))
				if err != nil {
					return err
				}
				defer func() { _ = wdb.Close() }() // safe to ignore

				for _, id := range slice {
					props, err := wdb.MergedProperties(ctx, id)
					if err != nil {
						return err
					}
					rendered := propertyMap(props)
					mu.Lock()
					out[strconv.FormatInt(id, 10)] = rendered
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[0], err)
		}
		defer func() { _ = f.Close() }() // safe to ignore

		if err := oj.Write(f, out, 2); err != nil {
			return fmt.Errorf("write %s: %w", args[0], err)
		}
		fmt.Printf("Exported %d elements to %s\n", len(ids), args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportWorkers, "workers", 4, "concurrent resolution workers (one DB handle each)")
	rootCmd.AddCommand(exportCmd)
}
