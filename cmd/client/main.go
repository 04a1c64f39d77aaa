package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modforge/modsync/internal/client"
	"github.com/modforge/modsync/internal/logging"
	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/utils"
	"github.com/modforge/modsync/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:     "modsync",
	Short:   "ModSync Client",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &client.Config{
			Path:         viper.ConfigFileUsed(),
			ServerURL:    viper.GetString("server_url"),
			Exclude:      viper.GetStringSlice("exclude"),
			ExcludeGlobs: viper.GetStringSlice("exclude_globs"),
			Headless:     viper.GetBool("headless"),
		}
		workDir, err := utils.ResolvePath(viper.GetString("work_dir"))
		if err != nil {
			return err
		}
		cfg.WorkDir = workDir
		if err := viper.UnmarshalKey("sync_paths", &cfg.SyncPaths); err != nil {
			return fmt.Errorf("parse sync_paths: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true

		layout := manifest.NewLayout(cfg.WorkDir)
		closer, err := logging.Setup(logging.Options{
			Level:    slog.LevelDebug,
			FilePath: filepath.Join(layout.LogsDir(), "client.log"),
		})
		if err != nil {
			return err
		}
		defer closer.Close()

		outcome, err := client.RunSynchronizationPass(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if outcome.UpdateCount == 0 {
			fmt.Println("up to date")
			return nil
		}

		fmt.Printf("%d pending changes staged (%d downloads, %d removals)\n",
			outcome.UpdateCount, outcome.Staged, outcome.Removed)
		if outcome.RestartRequired {
			fmt.Println("a restart will be required once the update is applied")
		}

		defer slog.Info("Bye!")
		return nil
	},
}

// initCmd writes a starter config so users do not have to hand-assemble the
// JSON shape.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config %s already exists", configPath)
		}

		cfg := &client.Config{
			ServerURL: client.DefaultServerURL,
			WorkDir:   ".",
			SyncPaths: []snapshot.SyncPath{
				{Name: "Mods", Path: "Mods", Enabled: true},
			},
		}
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("server", "s", client.DefaultServerURL, "ModSync authority server")
	rootCmd.Flags().StringP("workdir", "w", ".", "Host installation directory")
	rootCmd.PersistentFlags().StringP("config", "c", client.DefaultConfigPath, "ModSync config file")
	rootCmd.AddCommand(initCmd)
}

func main() {
	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	// config path
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".modsync"))
		viper.AddConfigPath(filepath.Join(home, ".config/modsync"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	// Bind flags to viper
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	viper.BindPFlag("work_dir", cmd.Flags().Lookup("workdir"))

	// Set up environment variables
	viper.SetEnvPrefix("MODSYNC")
	viper.AutomaticEnv()

	return nil
}
