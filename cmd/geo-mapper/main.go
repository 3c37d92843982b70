package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/logger"
)

var (
	configPath string
	cfg        *config.Config
	log        *zap.Logger
	restoreLog func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "geo-mapper",
		Short: "Map German regional data to NUTS and LAU geodata",
		Long: `geo-mapper resolves the rows of an input table (ids and/or names of
German administrative units) to the entities of NUTS and LAU reference
datasets and exports the mapping.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(); err != nil {
				return err
			}
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			log, restoreLog, err = logger.Install(cfg.Log.Mode)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if restoreLog != nil {
				restoreLog()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $GEO_MAPPER_CONFIG or "+config.DefaultPath+")")
	rootCmd.SetHelpTemplate(rootCmd.HelpTemplate() + "\nEnvironment:\n" + config.Usage() + "\n")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createNormalizeCmd())
	rootCmd.AddCommand(createDatasetsCmd())
	rootCmd.AddCommand(createDBCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
