// Command linepipe is a streaming line-oriented text processor: each input
// line runs through an ordered pipeline of Starlark-scripted stages before
// reaching the output sink.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"go.starlark.net/starlark"

	"github.com/dloss/linepipe/internal/cli"
	"github.com/dloss/linepipe/internal/driver"
	"github.com/dloss/linepipe/internal/engine"
	"github.com/dloss/linepipe/internal/errs"
	"github.com/dloss/linepipe/internal/script"
	"github.com/dloss/linepipe/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	})

	cfg, err := cli.Parse(args)
	if err != nil {
		if err == pflag.ErrHelp {
			return 2
		}
		logger.Error().Err(err).Msg("configuration error")
		return 1
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	st := store.New()
	env := script.NewEnv(st)

	top, err := driver.LoadIncludes(cfg.Includes, env)
	if err != nil {
		logger.Error().Err(err).Msg("include failed")
		return 1
	}

	stages, err := buildStages(cfg, top)
	if err != nil {
		logger.Error().Err(err).Msg("stage compile failed")
		return 1
	}

	pipeline := &engine.Pipeline{
		Stages:   stages,
		Env:      env,
		Top:      top,
		FailFast: cfg.FailFast,
	}

	sink, err := driver.NewSink(cfg.Sink)
	if err != nil {
		logger.Error().Err(err).Msg("could not open sink")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m *driver.Metrics
	if cfg.MetricsAddr != "" {
		m = driver.NewMetrics(st)
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	d := &driver.Driver{
		Pipeline:    pipeline,
		Sink:        sink,
		Store:       st,
		Logger:      logger,
		Debug:       cfg.Debug,
		RateLimiter: driver.NewRateLimiter(cfg.Rate),
		Metrics:     m,
	}

	sources, err := buildSources(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("configuration error")
		return 1
	}
	return d.Run(ctx, sources)
}

// buildStages compiles -e/--filter occurrences, or the single -s script
// file, into engine.Stages, in the order they must run. top holds the names
// the Include Loader bound into the shared top-level scope; those must
// resolve at compile time too, not just the ambient/builtin names.
func buildStages(cfg *cli.Config, top starlark.StringDict) ([]*engine.Stage, error) {
	predeclared := make(map[string]bool, len(top)+8)
	for _, n := range script.BuiltinNames(true) {
		predeclared[n] = true
	}
	for k := range top {
		predeclared[k] = true
	}

	if cfg.ScriptFile != "" {
		src, err := os.ReadFile(cfg.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("%w: -s %s: %v", errs.ErrIO, cfg.ScriptFile, err)
		}
		stage, err := engine.NewStage(cfg.ScriptFile, engine.Transform, string(src), predeclared)
		if err != nil {
			return nil, err
		}
		return []*engine.Stage{stage}, nil
	}

	stages := make([]*engine.Stage, 0, len(cfg.Stages))
	for i, spec := range cfg.Stages {
		name := fmt.Sprintf("%s#%d", spec.Role, i+1)
		stage, err := engine.NewStage(name, spec.Role, spec.Source, predeclared)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// buildSources turns --kafka or positional FILE arguments into Sources; an
// empty file list, or a lone "-", reads standard input. --kafka takes
// precedence and ignores any FILE arguments.
func buildSources(ctx context.Context, cfg *cli.Config) ([]driver.Source, error) {
	if cfg.Kafka != "" {
		kcfg, err := driver.ParseKafkaConfig(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return []driver.Source{driver.NewKafkaSource(ctx, kcfg)}, nil
	}

	if len(cfg.Files) == 0 {
		return []driver.Source{driver.NewStdinSource()}, nil
	}
	sources := make([]driver.Source, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		if f == "-" {
			sources = append(sources, driver.NewStdinSource())
			continue
		}
		sources = append(sources, driver.NewFileSource(f, cfg.Decompress))
	}
	return sources, nil
}
