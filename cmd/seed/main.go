// Command seed loads a YAML job-catalog fixture into Postgres. Dev tooling;
// the API never writes to the jobs table.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jobfindr/matchengine/internal/adapter/repo/postgres"
	"github.com/jobfindr/matchengine/internal/config"
	"github.com/jobfindr/matchengine/internal/observability"
)

type fixtureJob struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Requirements []string `yaml:"requirements"`
	Type         string   `yaml:"type"`
	Salary       *float64 `yaml:"salary"`
	Active       *bool    `yaml:"active"`
}

type fixture struct {
	Jobs []fixtureJob `yaml:"jobs"`
}

func main() {
	file := flag.String("file", "seed/jobs.yaml", "path to the YAML job fixture")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	if err := run(context.Background(), cfg, *file); err != nil {
		slog.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}
	if len(fx.Jobs) == 0 {
		return fmt.Errorf("fixture %s contains no jobs", file)
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL, cfg.ConnectInitialDelay, cfg.ConnectMaxElapsedTime)
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, j := range fx.Jobs {
		active := true
		if j.Active != nil {
			active = *j.Active
		}
		reqs, err := json.Marshal(j.Requirements)
		if err != nil {
			return fmt.Errorf("marshal requirements for %s: %w", j.ID, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO jobs (id, title, description, requirements, type, salary, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				requirements = EXCLUDED.requirements,
				type = EXCLUDED.type,
				salary = EXCLUDED.salary,
				is_active = EXCLUDED.is_active`,
			j.ID, j.Title, j.Description, reqs, j.Type, j.Salary, active)
		if err != nil {
			return fmt.Errorf("upsert job %s: %w", j.ID, err)
		}
		slog.Info("seeded job", slog.String("id", j.ID), slog.String("title", j.Title))
	}
	slog.Info("seed complete", slog.Int("jobs", len(fx.Jobs)))
	return nil
}
