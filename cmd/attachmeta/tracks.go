package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTracksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks FILE",
		Short: "Print the structural index of a media file",
		Long: `Print every track FILE declares, in container order, with its kind,
codec, payload size and tags. Tracks marked with * qualify as attachments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.scanner().Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Printf("%s: %s, %d bytes, %d tracks\n", args[0], c.Format, c.Size, len(c.Tracks))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\t#\tKIND\tCODEC\tPAYLOAD\tTAGS")
			for _, t := range c.Tracks {
				mark := ""
				if t.Qualifies() {
					mark = "*"
				}

				var tags []string
				for k, v := range t.Tags.All() {
					tags = append(tags, k+"="+v)
				}

				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\n",
					mark, t.Index, t.Kind, t.Codec, t.Payload.Len(), strings.Join(tags, " "))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, warn := range c.Warnings {
				cmd.PrintErrf("warning: %s\n", warn)
			}
			return nil
		},
	}
}
