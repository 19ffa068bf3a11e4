package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dkovac/brim/internal/config"
	"github.com/dkovac/brim/internal/identity"
)

var (
	cfgPath  string
	flagAddr string
	flagRoom string
	flagData string
)

var rootCmd = &cobra.Command{
	Use:   "brim",
	Short: "brim is a terminal client for a shared group chat",
	Long: `brim connects to an ordered message log, renders the room grouped
by calendar date, and keeps a display identity on this device.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "websocket address of the log store")
	rootCmd.PersistentFlags().StringVar(&flagRoom, "room", "", "room to join")
	rootCmd.PersistentFlags().StringVar(&flagData, "data-dir", "", "local state directory")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(renameCmd)
}

func main() {
	Execute()
}

// loadConfig resolves configuration: .env, then environment, then the
// optional YAML file, then explicit flags. Fails fast on an unusable
// result.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	if flagAddr != "" {
		cfg.LogAddr = flagAddr
	}
	if flagRoom != "" {
		cfg.Room = flagRoom
	}
	if flagData != "" {
		cfg.DataDir = flagData
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadLocalConfig is loadConfig for commands that only touch local state
// and do not need a reachable log store.
func loadLocalConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	if flagData != "" {
		cfg.DataDir = flagData
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir must not be empty")
	}
	return cfg, nil
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func openIdentityStore(cfg *config.Config, log *zap.Logger) (*identity.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return identity.Open(filepath.Join(cfg.DataDir, "identity"), log)
}
