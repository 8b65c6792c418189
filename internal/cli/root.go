package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adaptive-quiz-service/internal/config"
	"adaptive-quiz-service/internal/logging"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envPort := os.Getenv("PORT")
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:           "quiz-service",
		Short:         "Adaptive quiz service: difficulty follows the player's last answer",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&port, "port", envPort, "port to listen on (overrides server.port)")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewImportCmd(&configPath))
	cmd.AddCommand(NewPlayCmd(&configPath))
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewLeaderboardCmd(&configPath))
	cmd.AddCommand(NewStatsCmd(&configPath))
	return cmd
}

// setup loads config and builds the logger. Interactive commands pass
// quiet so only warnings reach the terminal.
func setup(path string, quiet bool) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if quiet && cfg.Log.Level != "debug" {
		cfg.Log.Level = "warn"
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}
