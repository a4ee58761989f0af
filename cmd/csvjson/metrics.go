package main

import (
	"context"
	"fmt"
	"os"

	"csvjson/internal/config"
	"csvjson/internal/logging"
	"csvjson/internal/metrics"
	"csvjson/internal/metrics/datadog"
)

// metricsInit installs the configured metrics backend and returns the
// function that flushes and detaches it.
type metricsInit func(ctx context.Context, m config.Metrics, job string) (cleanup func(), err error)

// initMetrics selects the backend from m.Backend, falling back to the
// METRICS_BACKEND environment variable.
func initMetrics(ctx context.Context, m config.Metrics, job string) (func(), error) {
	log := logging.FromContext(ctx)

	name := m.Backend
	if name == "" || name == "none" {
		if env := os.Getenv("METRICS_BACKEND"); env != "" {
			name = env
		}
	}

	switch name {
	case "datadog":
		tags := append([]string(nil), m.Tags...)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)

		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return nil, err
		}
		log.Info("metrics enabled", "backend", name, "job", job, "tags", tags)
		metrics.SetBackend(b)

		return func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics flush failed", "backend", name, "error", err)
			}
			metrics.SetBackend(nil)
		}, nil

	case "", "none":
		log.Debug("metrics disabled")
		return func() {}, nil
	}
	return nil, fmt.Errorf("unknown metrics backend %q", name)
}
