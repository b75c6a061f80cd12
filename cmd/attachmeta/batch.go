package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch FILE...",
		Short: "Scan many files concurrently and summarise",
		Long: `Scan every FILE for its first attachment, several at a time, and print
one line per file followed by a summary.

The first file that cannot be opened or parsed stops the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			results, err := a.scanner().FindMany(cmd.Context(), args...)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			var found int
			var total int64
			for i, att := range results {
				if att == nil {
					cmd.Printf("%s: -\n", args[i])
					continue
				}
				found++
				total += int64(len(att.Data))
				cmd.Printf("%s: %s [%s]\n", args[i], att, att.Format)
			}

			cmd.Println()
			cmd.Printf("%d files, %d with attachments, %s in %s\n",
				len(results), found, formatBytes(total), elapsed.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().Int(keyConcurrency, runtime.NumCPU(), "number of files to scan at once")
	if err := a.v.BindPFlag(keyConcurrency, cmd.Flags().Lookup(keyConcurrency)); err != nil {
		panic(fmt.Sprintf("bind flag: %v", err))
	}
	return cmd
}

// formatBytes formats a byte count in binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
