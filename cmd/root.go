// Package cmd implements the facet CLI: exploration and export commands over
// a property database and its embedded fragment locations.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "facet",
	Short: "Query element metadata and spatial placement from a property database",
	Long: `facet reads a normalized element-attribute database extracted from a large
3D scene graph. It resolves direct and inherited properties per element,
scans whole-store attributes, decodes packed fragment streams into spatial
locations, and embeds those locations back into the database for disk-resident
lookups.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the property database file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkPersistentFlagRequired("db")
}

// newLogger builds the command logger: development output with --verbose,
// otherwise silent.
func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
