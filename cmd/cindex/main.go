// Command cindex builds and maintains a csearch index.
//
// With path arguments it indexes those trees; with none it reindexes the
// roots recorded in the existing index. The new index is written beside
// the old one and renamed into place, so searches keep working during a
// rebuild.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csearch-go/csearch"
	"github.com/csearch-go/csearch/index"
)

func main() {
	var (
		indexPath           string
		list                bool
		reset               bool
		verbose             bool
		maxFileLen          int64
		maxLineLen          int
		maxTrigrams         int
		maxInvalidUTF8Ratio float64
		excludeFile         string
		fileList            string
	)

	rootCmd := &cobra.Command{
		Use:   "cindex [path...]",
		Short: "Build a trigram index for csearch",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexPath == "" {
				indexPath = csearch.File()
			}
			logger := csearch.NoopLogger()
			if verbose {
				logger = csearch.NewTextLogger(slog.LevelDebug)
			}

			switch {
			case list:
				return runList(indexPath)
			case reset:
				if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
					return err
				}
				return nil
			case fileList != "":
				return runFileList(cmd.Context(), indexPath, fileList, logger)
			}

			roots := args
			if len(roots) == 0 {
				// Reindex whatever the current index covers.
				var err error
				if roots, err = indexedRoots(indexPath); err != nil {
					return err
				}
				if len(roots) == 0 {
					return fmt.Errorf("no existing index at %s and no paths given", indexPath)
				}
			}

			opts := []csearch.Option{
				csearch.WithLogger(logger),
				csearch.WithMaxFileLen(maxFileLen),
				csearch.WithMaxLineLen(maxLineLen),
				csearch.WithMaxTrigrams(maxTrigrams),
				csearch.WithMaxInvalidUTF8Ratio(maxInvalidUTF8Ratio),
				csearch.WithExcludes("**/.csearchindex"),
			}
			if excludeFile != "" {
				patterns, err := readLines(excludeFile)
				if err != nil {
					return err
				}
				opts = append(opts, csearch.WithExcludes(patterns...))
			}

			stats, err := csearch.Build(cmd.Context(), indexPath, roots, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files indexed, %d skipped, %d errors\n",
				stats.Indexed, stats.Skipped, stats.Errors)
			return nil
		},
	}

	def := index.DefaultLimits()
	rootCmd.Flags().StringVar(&indexPath, "indexpath", "", "index file to write (default $CSEARCHINDEX or ~/.csearchindex)")
	rootCmd.Flags().BoolVar(&list, "list", false, "print the roots covered by the index and exit")
	rootCmd.Flags().BoolVar(&reset, "reset", false, "delete the index and exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log progress, including skipped files")
	rootCmd.Flags().Int64Var(&maxFileLen, "maxFileLen", def.MaxFileLen, "skip files larger than this many bytes")
	rootCmd.Flags().IntVar(&maxLineLen, "maxLineLen", def.MaxLineLen, "skip files with lines longer than this many bytes")
	rootCmd.Flags().IntVar(&maxTrigrams, "maxtrigrams", def.MaxTrigrams, "skip files with more distinct trigrams than this")
	rootCmd.Flags().Float64Var(&maxInvalidUTF8Ratio, "maxinvalidutf8ratio", def.MaxInvalidUTF8Ratio, "skip files with a higher ratio of invalid UTF-8")
	rootCmd.Flags().StringVar(&excludeFile, "exclude", "", "file of glob patterns to skip, one per line")
	rootCmd.Flags().StringVar(&fileList, "filelist", "", "index exactly the files named in this file, one per line")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "cindex:", err)
		os.Exit(1)
	}
}

func runList(indexPath string) error {
	ix, err := index.Open(indexPath)
	if err != nil {
		return err
	}
	defer ix.Close()

	paths, err := ix.Paths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func indexedRoots(indexPath string) ([]string, error) {
	ix, err := index.Open(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer ix.Close()
	return ix.Paths()
}

// runFileList indexes an explicit list of files, bypassing the walker.
func runFileList(ctx context.Context, indexPath, fileList string, logger *csearch.Logger) error {
	names, err := readLines(fileList)
	if err != nil {
		return err
	}
	sort.Strings(names)

	tmp := indexPath + "~"
	w, err := index.Create(tmp, index.WithLogger(logger.Logger))
	if err != nil {
		return err
	}

	var indexed, skipped, failed int
	prev := ""
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			w.Abort()
			return err
		}
		if name == prev {
			continue
		}
		prev = name
		switch err := w.AddFile(name); {
		case err == nil:
			indexed++
		case index.IsSkip(err):
			skipped++
		default:
			failed++
			logger.Warn("cannot index file", "name", name, "error", err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		os.Remove(tmp)
		return err
	}
	fmt.Printf("%d files indexed, %d skipped, %d errors\n", indexed, skipped, failed)
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}
