package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/dhamidi/decaf/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "decaf",
		Short:        "Reconstruct structured source from JVM class files",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./decaf.yaml)")
	config.AddFlags(rootCmd.PersistentFlags())

	load := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return nil, err
		}
		var logFile *string
		if cfg.Log.File != "" {
			logFile = &cfg.Log.File
		}
		commonlog.Configure(cfg.Log.Verbosity, logFile)
		return cfg, nil
	}

	rootCmd.AddCommand(newDecompileCmd(load))
	rootCmd.AddCommand(newTreeCmd(load))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
