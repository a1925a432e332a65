package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solarworks/sunray/internal/client"
	"github.com/solarworks/sunray/internal/config"
	"github.com/urfave/cli/v3"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Submit a scene to a remote server and download the result",
		ArgsUsage: "<scene.json> <weather.epw>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Server base URL",
				Sources: cli.EnvVars("SUNRAY_CLIENT_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for the downloaded result",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("expected <scene.json> <weather.epw>")
			}
			scenePath := cmd.Args().Get(0)
			epwPath := cmd.Args().Get(1)

			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if level, err := zerolog.ParseLevel(cmd.String("log-level")); err == nil {
				zerolog.SetGlobalLevel(level)
			}
			if v := cmd.String("server"); v != "" {
				cfg.Client.ServerURL = v
			}
			if v := cmd.String("output-dir"); v != "" {
				cfg.Client.OutputDir = v
			}

			agent := client.New(client.Options{
				ServerURL:    cfg.Client.ServerURL,
				PollInterval: cfg.Client.PollIntervalDuration(),
				Timeout:      cfg.Client.TimeoutDuration(),
				OutputDir:    cfg.Client.OutputDir,
				OnStatus: func(stage string, progress int, message string) {
					ev := log.Info().Str("stage", stage).Int("progress", progress)
					if message != "" {
						ev = ev.Str("message", message)
					}
					ev.Msg("analysis status")
				},
			})
			defer agent.Close()

			if _, err := agent.ServerStatus(); err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}

			type outcome struct {
				ok     bool
				detail string
			}
			done := make(chan outcome, 1)
			agent.Submit(scenePath, epwPath, func(ok bool, detail string) {
				done <- outcome{ok, detail}
			})

			// Drain agent callbacks on this goroutine, the way an
			// embedding host would from its main loop.
			tick := time.NewTicker(50 * time.Millisecond)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					agent.Stop()
					return ctx.Err()
				case <-tick.C:
					agent.Tick()
				case out := <-done:
					agent.Tick()
					if !out.ok {
						return fmt.Errorf("analysis failed: %s", out.detail)
					}
					log.Info().Str("path", out.detail).Msg("analysis complete")
					return nil
				}
			}
		},
	}
}
