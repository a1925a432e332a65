package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8000,

		"jobs.dir":        "/data/jobs",
		"jobs.workers":    2,
		"jobs.queue_size": 64,

		"engine.backend": "raytrace",
		"engine.threads": 0,

		"analysis.colormap": "ecotect",

		"client.server_url":    "http://localhost:8000",
		"client.poll_interval": "2s",
		"client.timeout":       "30s",
		"client.output_dir":    "",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
