package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/modforge/modsync/internal/logging"
	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/updater"
	"github.com/modforge/modsync/internal/version"
)

func main() {
	os.Exit(int(run()))
}

func run() (code updater.ExitCode) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			code = updater.UnexpectedError
		}
	}()

	var silent bool
	var workDir string

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "modsync-updater <pid>",
		Short:   "ModSync Deferred Updater",
		Long:    "Waits for the host process to exit, then applies the staged update.",
		Version: version.Detailed(),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil || pid <= 0 {
				return fmt.Errorf("pid must be a positive integer, got %q", args[0])
			}

			resolved, err := filepath.Abs(workDir)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			layout := manifest.NewLayout(resolved)
			closer, err := logging.Setup(logging.Options{
				Level:       slog.LevelDebug,
				FilePath:    filepath.Join(layout.LogsDir(), "updater.log"),
				ConsoleOnly: false,
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			var reporter updater.Reporter = &updater.ConsoleReporter{W: os.Stdout}
			if silent {
				reporter = updater.NopReporter{}
			}

			coordinator := updater.New(resolved, updater.WithReporter(reporter))
			code = coordinator.Run(cmd.Context(), int32(pid))
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&silent, "silent", false, "Suppress progress output")
	rootCmd.Flags().StringVarP(&workDir, "workdir", "w", ".", "Host installation directory")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return updater.InvalidArguments
	}
	return code
}
