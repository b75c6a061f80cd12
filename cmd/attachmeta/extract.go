package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// exitNotFound is the exit status when a file has no attachment.
const exitNotFound = 2

func newExtractCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract the first embedded attachment",
		Long: `Extract the first attachment of FILE, in the order the container declares
its tracks, and print its filename, MIME type and size.

The attachment is written to --output, or to the filename the container
records when --output is not given. Nothing is written when the file has no
attachment; the command then exits with status 2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			att, err := a.scanner().FindFirstAttachment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if att == nil {
				cmd.PrintErrf("%s: no attachment found\n", args[0])
				return &exitError{code: exitNotFound}
			}

			dest := output
			if dest == "" {
				dest = defaultOutputName(att.Filename, att.MIMEType)
			}
			if err := afero.WriteFile(a.fs, dest, att.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dest, err)
			}

			cmd.Printf("filename: %s\n", att.Filename)
			cmd.Printf("mimetype: %s\n", att.MIMEType)
			cmd.Printf("size:     %d\n", len(att.Data))
			cmd.Printf("written:  %s\n", dest)
			a.logger.Info("attachment extracted", "path", args[0], "output", dest, "size", len(att.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the attachment to this path")
	return cmd
}

// defaultOutputName picks an output path when none is given: the recorded
// filename without any directory part, or "attachment" plus an extension
// derived from the MIME type.
func defaultOutputName(filename, mime string) string {
	switch name := filepath.Base(filename); {
	case filename == "", name == ".", name == "..", name == string(filepath.Separator):
	default:
		return name
	}
	switch mime {
	case "image/jpeg":
		return "attachment.jpg"
	case "image/png":
		return "attachment.png"
	case "image/gif":
		return "attachment.gif"
	case "image/webp":
		return "attachment.webp"
	case "image/bmp":
		return "attachment.bmp"
	default:
		return "attachment.bin"
	}
}
