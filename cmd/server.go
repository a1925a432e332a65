package cmd

import (
	"context"
	"fmt"

	"github.com/solarworks/sunray/internal/config"
	"github.com/solarworks/sunray/internal/server"
	"github.com/urfave/cli/v3"
)

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the analysis server (accepts jobs over HTTP)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "jobs-dir",
				Usage:   "Directory for per-job working files",
				Sources: cli.EnvVars("SUNRAY_JOBS_DIR"),
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP listen port",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("jobs-dir"); v != "" {
				cfg.Jobs.Dir = v
			}
			if v := cmd.Int("port"); v != 0 {
				cfg.Server.Port = int(v)
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}

			return server.Run(ctx, cfg)
		},
	}
}
