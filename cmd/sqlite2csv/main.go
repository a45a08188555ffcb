// Command sqlite2csv dumps one table out of a sqlite3 database file
// straight from its on-disk page format, without going through any
// SQLite engine, and writes it as RFC 4180 CSV.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/i64/sqlite3-dump/internal/csvsink"
	"github.com/i64/sqlite3-dump/sqlite3"
)

var (
	table   string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:           "sqlite2csv <database> [output]",
		Short:         "Dump a sqlite3 table to CSV by reading its on-disk format directly",
		Long: "Dump a sqlite3 table to CSV by reading its on-disk format directly.\n" +
			"Output goes to the trailing positional path if given, otherwise to stdout\n" +
			"(so shell redirection with '>' works the same way).",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVarP(&table, "table", "t", "", "table to dump (required)")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log page/cell-level debug detail")
	_ = root.MarkFlagRequired("table")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sqlite2csv:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	dbPath := args[0]
	log := logrus.WithFields(logrus.Fields{"db": dbPath, "table": table})

	db, err := sqlite3.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	log.WithFields(logrus.Fields{
		"page_size": db.PageSize(),
		"encoding":  db.Encoding(),
	}).Debug("opened database")

	cols, err := db.Columns(table)
	if err != nil {
		return err
	}

	it, err := db.Scan(table)
	if err != nil {
		return err
	}
	defer it.Close()

	w := os.Stdout
	if len(args) > 1 {
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	rows, err := csvsink.Write(w, cols, db.Encoding(), it)
	if err != nil {
		return err
	}

	log.WithField("rows", rows).Debug("dump complete")
	return nil
}
