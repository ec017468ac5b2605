package driver

import (
	"bufio"
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dloss/linepipe/internal/engine"
	"github.com/dloss/linepipe/internal/store"
)

// Driver is the Stream Driver: it iterates Sources sequentially, maintains
// LINENUM/FILENAME/RECNUM, drives each line through the Pipeline, and writes
// the result to Sink.
type Driver struct {
	Pipeline *engine.Pipeline
	Sink     Sink
	Store    *store.Store
	Logger   zerolog.Logger

	Debug       bool
	RateLimiter *RateLimiter
	Metrics     *Metrics // nil disables metrics
}

// Run processes every source in order and returns the process exit code:
// 2 if no output and no errors, 1 if errors occurred (even partway through
// a run that did produce output), else 0.
func (d *Driver) Run(ctx context.Context, sources []Source) int {
	var (
		lineNum   int64
		anyOutput bool
		hadErrors bool
	)

	var sinkFailed bool

	onEmit := func(line string) {
		if err := d.Sink.WriteLine(line); err != nil {
			d.Logger.Error().Err(err).Msg("sink write failed")
			hadErrors = true
			sinkFailed = true
			return
		}
		anyOutput = true
		if d.Metrics != nil {
			d.Metrics.LineProduced()
		}
	}

sources:
	for _, src := range sources {
		filename := src.DisplayName()
		recNum := int64(0)

		rc, err := src.Open()
		if err != nil {
			d.Logger.Error().Err(err).Str("source", filename).Msg("could not open source")
			hadErrors = true
			continue
		}

		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		for scanner.Scan() {
			if err := d.RateLimiter.Wait(ctx); err != nil {
				break
			}

			lineNum++
			recNum++

			lctx := &engine.Context{
				Line:     scanner.Text(),
				LineNum:  lineNum,
				RecNum:   recNum,
				Filename: filename,
				Store:    d.Store,
			}

			if d.Metrics != nil {
				d.Metrics.LineRead()
			}

			start := time.Now()
			onError := func(stageName string, err error) {
				hadErrors = true
				if d.Metrics != nil {
					d.Metrics.Errored()
				}
				d.Logger.Error().
					Int64("linenum", lctx.LineNum).
					Str("filename", filename).
					Str("stage", stageName).
					Err(err).
					Msg("dropping line after stage error")
			}

			outcome := d.Pipeline.ProcessLine(lctx, onEmit, onError)

			if d.Debug {
				d.Logger.Debug().
					Int64("linenum", lctx.LineNum).
					Str("filename", filename).
					Int("outcome", int(outcome.Kind)).
					Dur("elapsed", time.Since(start)).
					Msg("processed line")
			}

			switch outcome.Kind {
			case engine.Produced:
				onEmit(outcome.Line)
			case engine.Dropped:
				if d.Metrics != nil {
					d.Metrics.LineDropped()
				}
			case engine.Terminated:
				if outcome.HasMessage {
					d.Logger.Info().Str("message", outcome.Message).Msg("terminated")
				} else {
					d.Logger.Info().Msg("terminated")
				}
				rc.Close()
				break sources
			case engine.Aborted:
				d.Logger.Error().Err(outcome.Err).Msg("aborted")
				hadErrors = true
				if d.Metrics != nil {
					d.Metrics.Errored()
				}
				rc.Close()
				break sources
			}

			if sinkFailed {
				rc.Close()
				break sources
			}
		}

		if err := scanner.Err(); err != nil {
			d.Logger.Error().Err(err).Str("source", filename).Msg("read error")
			hadErrors = true
		}
		rc.Close()
	}

	if err := d.Sink.Flush(); err != nil {
		d.Logger.Error().Err(err).Msg("sink flush failed")
		hadErrors = true
	}
	if err := d.Sink.Close(); err != nil {
		d.Logger.Error().Err(err).Msg("sink close failed")
		hadErrors = true
	}

	return exitCode(anyOutput, hadErrors)
}

// exitCode gives errors priority over the no-output case because a run
// that failed partway may still have produced some lines.
func exitCode(anyOutput, hadErrors bool) int {
	switch {
	case hadErrors:
		return 1
	case !anyOutput:
		return 2
	default:
		return 0
	}
}
