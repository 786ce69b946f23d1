package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/wanderauth/bootstrap"
)

var bootstrapTimeout time.Duration

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Run one readiness pass and report how it went",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := awaitBootstrap(cmd.Context())
		if err != nil {
			return err
		}

		image := "loaded"
		if r.ImageErr != nil {
			image = "failed: " + r.ImageErr.Error()
		}
		printPairs(os.Stdout, [][2]string{
			{"Pass", strconv.FormatUint(r.Pass, 10)},
			{"Auth ready", strconv.FormatBool(r.AuthReady)},
			{"Image", image},
			{"Persisted admin", strconv.FormatBool(r.Admin)},
			{"Elapsed", r.Elapsed.Round(time.Millisecond).String()},
		})
		printSession()
		return nil
	},
}

var slide bootstrap.Slide

var slidesCmd = &cobra.Command{
	Use:   "slides",
	Short: "Manage landing page slides",
}

var slidesPutCmd = &cobra.Command{
	Use:   "put <key>",
	Short: "Create or replace a slide",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.engine.PutHeroSlide(cmd.Context(), args[0], slide); err != nil {
			return err
		}
		printSuccess("Saved slide %s", args[0])
		return nil
	},
}

func init() {
	bootstrapCmd.Flags().DurationVar(&bootstrapTimeout, "timeout", 30*time.Second, "how long to wait for readiness")
	whoamiCmd.Flags().DurationVar(&bootstrapTimeout, "timeout", 30*time.Second, "how long to wait for readiness")

	f := slidesPutCmd.Flags()
	f.StringVar(&slide.Image, "image", "", "image URL")
	f.StringVar(&slide.Title, "title", "", "caption")
	f.IntVar(&slide.Order, "order", 0, "position; the lowest order gates readiness")
	_ = slidesPutCmd.MarkFlagRequired("image")
	slidesCmd.AddCommand(slidesPutCmd)
}

// awaitBootstrap starts a pass and blocks until it is ready.
func awaitBootstrap(ctx context.Context) (bootstrap.Readiness, error) {
	app.engine.Bootstrap(ctx)

	timeout := bootstrapTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-app.engine.Done():
		return app.engine.Readiness(), nil
	case <-timer.C:
		return bootstrap.Readiness{}, fmt.Errorf("not ready after %s", timeout)
	case <-ctx.Done():
		return bootstrap.Readiness{}, ctx.Err()
	}
}
