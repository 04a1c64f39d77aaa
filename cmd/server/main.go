package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/modforge/modsync/internal/logging"
	"github.com/modforge/modsync/internal/server"
	"github.com/modforge/modsync/internal/version"
)

func main() {
	var certFile string
	var keyFile string
	var addr string
	var contentDir string
	var dbPath string
	var logFile string
	var rescanInterval time.Duration
	var rateLimit string

	// optional .env for local development
	_ = godotenv.Load()

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rootCmd = &cobra.Command{
		Use:     "modsync-server",
		Short:   "ModSync Authority Server",
		Version: version.Detailed(),
		RunE: func(cmd *cobra.Command, args []string) error {
			closer, err := logging.Setup(logging.Options{
				Level:    slog.LevelDebug,
				FilePath: logFile,
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			config := &server.Config{
				HTTP: server.HTTPConfig{
					Addr:     addr,
					CertFile: certFile,
					KeyFile:  keyFile,
				},
				ContentDir:     contentDir,
				DBPath:         dbPath,
				RescanInterval: rescanInterval,
				RateLimit:      rateLimit,
			}
			s, err := server.New(config)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			defer slog.Info("Bye!")
			return s.Start(cmd.Context())
		},
	}

	rootCmd.Flags().StringVarP(&contentDir, "content", "d", "./content", "Directory published to clients")
	rootCmd.Flags().StringVar(&dbPath, "db", "./modsync.db", "Path to the changelog database")
	rootCmd.Flags().StringVarP(&addr, "bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringVarP(&certFile, "cert", "c", "", "Path to the certificate file")
	rootCmd.Flags().StringVarP(&keyFile, "key", "k", "", "Path to the key file")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Path to the rotating log file")
	rootCmd.Flags().DurationVar(&rescanInterval, "rescan", 0, "Content rescan interval (default 30s)")
	rootCmd.Flags().StringVar(&rateLimit, "rate-limit", "", "API rate limit, e.g. 120-M")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
