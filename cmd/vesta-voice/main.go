package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vesta-voice/internal/app/services"
	"vesta-voice/internal/bootstrap"
	"vesta-voice/internal/platform/config"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "vesta-voice",
		Short:         "Vesta voice assistant server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Printf("[%s] [INFO] [引导] 开始启动 vesta-voice...\n", time.Now().Format("2006-01-02 15:04:05.000"))
			return bootstrap.Run(cmd.Context(), bootstrap.Options{ConfigPath: configPath})
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "配置文件路径")

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate the configuration, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader().WithPath(configPath)
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:     %s\n", loader.Path())
			fmt.Fprintf(out, "listen:     %s:%d%s\n", cfg.Server.IP, cfg.Server.Port, cfg.Server.WebSocketPath)
			fmt.Fprintf(out, "language:   %s\n", cfg.Assistant.Language)
			fmt.Fprintf(out, "routes:     %d\n", len(services.VoiceConfig(cfg.Assistant).EffectiveRoutes()))
			fmt.Fprintf(out, "classifier: %s\n", cfg.Classifier.APIBaseURL)
			fmt.Fprintf(out, "store:      %s\n", cfg.Store.Driver)
			fmt.Fprintf(out, "synthesis:  %s\n", cfg.Synthesis.Mode)
			return nil
		},
	}
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "vesta-voice failed: %v\n", err)
		os.Exit(1)
	}
}
