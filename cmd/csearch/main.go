// Command csearch searches a cindex-built index with a regular
// expression and prints grep-style file:line matches.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/csearch-go/csearch"
)

func main() {
	var (
		indexPath       string
		caseInsensitive bool
		namesOnly       bool
		fileFilter      string
		verbose         bool
	)

	rootCmd := &cobra.Command{
		Use:   "csearch <regexp>",
		Short: "Search indexed files with a regular expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexPath == "" {
				indexPath = csearch.File()
			}
			logger := csearch.NoopLogger()
			if verbose {
				logger = csearch.NewTextLogger(slog.LevelDebug)
			}

			matches, err := csearch.Search(cmd.Context(), indexPath, args[0],
				csearch.WithLogger(logger),
				csearch.WithCaseInsensitive(caseInsensitive),
				csearch.WithNamesOnly(namesOnly),
				csearch.WithFileFilter(fileFilter),
			)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, m := range matches {
				if namesOnly {
					fmt.Fprintln(out, m.File)
				} else {
					fmt.Fprintf(out, "%s:%d:%s\n", m.File, m.Line, m.Text)
				}
			}
			if len(matches) == 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVar(&indexPath, "indexpath", "", "index file to search (default $CSEARCHINDEX or ~/.csearchindex)")
	rootCmd.Flags().BoolVarP(&caseInsensitive, "ignore-case", "i", false, "case-insensitive match")
	rootCmd.Flags().BoolVarP(&namesOnly, "files-with-matches", "l", false, "print only names of matching files")
	rootCmd.Flags().StringVarP(&fileFilter, "file", "f", "", "search only files with paths matching this regexp")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log files that could not be searched")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "csearch:", err)
		os.Exit(1)
	}
}
