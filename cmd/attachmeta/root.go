package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simonhull/attachmeta"
)

// Configuration keys, shared by flags and ATTACHMETA_* environment variables.
const (
	keyLogLevel    = "log-level"
	keyLogFormat   = "log-format"
	keyLogFile     = "log-file"
	keyMaxSize     = "max-size"
	keyStrict      = "strict"
	keyConcurrency = "concurrency"
)

// app carries what every sub-command needs once flags are resolved.
type app struct {
	fs     afero.Fs
	v      *viper.Viper
	logger *slog.Logger
	closer io.Closer
}

// scanner builds a Scanner from the resolved configuration.
func (a *app) scanner() *attachmeta.Scanner {
	opts := []attachmeta.Option{
		attachmeta.WithFs(a.fs),
		attachmeta.WithLogger(a.logger),
		attachmeta.WithMaxPayloadSize(a.v.GetInt64(keyMaxSize)),
		attachmeta.WithConcurrency(a.v.GetInt(keyConcurrency)),
	}
	if a.v.GetBool(keyStrict) {
		opts = append(opts, attachmeta.WithStrictParsing())
	}
	return attachmeta.New(opts...)
}

// newRootCmd creates the root command. Files are read from and written to
// fs.
func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs, v: viper.New()}

	cmd := &cobra.Command{
		Use:   "attachmeta",
		Short: "Find and extract attachments embedded in media files",
		Long: `attachmeta reads Matroska, WebM, MP4, MP3, FLAC and Ogg files and
extracts the files they carry: cover art, fonts and other attachments.

Every flag can also be set through an ATTACHMETA_* environment variable,
for example ATTACHMETA_LOG_LEVEL=debug.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := newLogger(a.fs, cmd.ErrOrStderr(), logConfig{
				Level:  a.v.GetString(keyLogLevel),
				Format: a.v.GetString(keyLogFormat),
				File:   a.v.GetString(keyLogFile),
			})
			if err != nil {
				return err
			}
			a.logger, a.closer = logger, closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(keyLogLevel, "warn", "log level: debug, info, warn or error")
	flags.String(keyLogFormat, "text", "log format: text or json")
	flags.String(keyLogFile, "", "write logs to this file, rotated by size")
	flags.Int64(keyMaxSize, 0, "skip attachments larger than this many bytes (0 = no limit)")
	flags.Bool(keyStrict, false, "treat any container damage as an error")

	a.v.SetEnvPrefix("ATTACHMETA")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}

	cmd.AddCommand(
		newExtractCmd(a),
		newTracksCmd(a),
		newBatchCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := attachmeta.GetVersionInfo()
			cmd.Printf("attachmeta version %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Built: %s\n", info.BuildTime)
			cmd.Printf("Go version: %s\n", info.GoVersion)
		},
	}
}
