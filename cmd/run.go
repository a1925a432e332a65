package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/solarworks/sunray/internal/config"
	"github.com/solarworks/sunray/internal/engine"
	"github.com/solarworks/sunray/internal/engine/raytrace"
	"github.com/solarworks/sunray/internal/pipeline"
	"github.com/solarworks/sunray/internal/sun"
	"github.com/urfave/cli/v3"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run an analysis locally without a server",
		ArgsUsage: "<scene.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for result files (default: current directory)",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "colormap",
				Usage: "Colormap for result colors",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected <scene.json>")
			}
			scenePath := cmd.Args().Get(0)

			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if level, err := zerolog.ParseLevel(cmd.String("log-level")); err == nil {
				zerolog.SetGlobalLevel(level)
			}
			if v := cmd.String("colormap"); v != "" {
				cfg.Analysis.Colormap = v
			}

			reg := engine.NewRegistry()
			reg.Register(&raytrace.Engine{Workers: cfg.Engine.Threads})
			eng, err := reg.Get(cfg.Engine.Backend)
			if err != nil {
				return err
			}

			p := pipeline.New(eng, sun.Vectors, cfg.Analysis.Colormap)
			res, err := p.Run(ctx, scenePath, cmd.String("output-dir"))
			if err != nil {
				return err
			}

			log.Info().
				Str("scene", res.ScenePath).
				Str("csv", res.CSVPath).
				Float64("min", res.Stats.Min).
				Float64("max", res.Stats.Max).
				Float64("mean", res.Stats.Mean).
				Float64("total", res.Stats.Total).
				Msg("analysis complete")
			return nil
		},
	}
}
