package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/wanderauth/metrics/export/prometheus"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Run a bootstrap pass and print the engine metrics in Prometheus format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := awaitBootstrap(cmd.Context()); err != nil {
			return err
		}
		out := prometheus.NewPrometheusExporter(app.engine).Render()
		if out == "" {
			printWarning("metrics are disabled; set engine.metrics.enabled in the config file")
			return nil
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	metricsCmd.Flags().DurationVar(&bootstrapTimeout, "timeout", 30*time.Second, "how long to wait for readiness")
}
