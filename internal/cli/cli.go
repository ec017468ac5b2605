// Package cli parses linepipe's flat flag set: pflag for parsing,
// koanf+posflag as the config-value layer flags are exported into.
package cli

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/dloss/linepipe/internal/engine"
	"github.com/dloss/linepipe/internal/errs"
)

// StageSpec is one -e/--filter occurrence, in command-line order.
type StageSpec struct {
	Role   engine.Role
	Source string
}

// Config is the fully parsed and validated command line:
//
//	linepipe [-e EXPR | --filter EXPR]... [-s FILE] [-I FILE]... [-o SINK]
//	         [-z MODE] [--rate N] [--metrics-addr HOST:PORT] [--kafka SPEC]
//	         [--debug] [--fail-fast] [FILE...]
type Config struct {
	Stages      []StageSpec
	ScriptFile  string // -s, mutually exclusive with Stages
	Includes    []string
	Sink        string
	Decompress  string
	Rate        float64
	MetricsAddr string
	Debug       bool
	FailFast    bool
	Kafka       string // --kafka brokers=...,topic=...[,group=...]; empty disables
	Files       []string
}

// stageVar is a pflag.Value that appends every -e/--filter occurrence, in
// the order pflag encounters them, to a shared slice. Two flags ("expr" and
// "filter") bind distinct instances sharing the same backing slice, which is
// what gives -e/--filter their freely-interleaved ordering: the stage
// pipeline runs in exactly the order these flags appeared on the command
// line.
type stageVar struct {
	specs *[]StageSpec
	role  engine.Role
}

func (v *stageVar) String() string { return "" }
func (v *stageVar) Type() string   { return "stage" }
func (v *stageVar) Set(s string) error {
	*v.specs = append(*v.specs, StageSpec{Role: v.role, Source: s})
	return nil
}

// Parse parses args (conventionally os.Args[1:]) into a Config. Combining
// -s with any -e/--filter occurrence is a Usage error (see DESIGN.md).
func Parse(args []string) (*Config, error) {
	f := pflag.NewFlagSet("linepipe", pflag.ContinueOnError)
	f.SortFlags = false
	f.Usage = func() { usage(f) }

	var stages []StageSpec
	f.VarP(&stageVar{specs: &stages, role: engine.Transform}, "expr", "e", "append a Transform stage")
	f.Var(&stageVar{specs: &stages, role: engine.Filter}, "filter", "append a Filter stage")

	f.StringP("script", "s", "", "load stage source from FILE (mutually exclusive with -e/--filter)")
	includes := f.StringArrayP("include", "I", nil, "evaluate FILE against the shared top-level scope before any stage runs")
	f.StringP("output", "o", "-", "write produced lines to FILE, \"-\" for stdout, or a ws(s):// URL")
	f.StringP("decompress", "z", "auto", "input decompression: auto, gzip, bzip2, zstd, none")
	f.Float64("rate", 0, "cap input to N lines/second (0 disables limiting)")
	f.String("metrics-addr", "", "serve Prometheus metrics on HOST:PORT (empty disables)")
	f.Bool("debug", false, "log a per-line trace to the diagnostic stream")
	f.Bool("fail-fast", false, "abort the run on the first stage error instead of dropping the line")
	f.String("kafka", "", "read lines from a Kafka topic instead of files/stdin: brokers=host:9092;host2:9092,topic=name[,group=g]")

	if err := f.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, err
		}
		usage(f)
		return nil, fmt.Errorf("%w: %v", errs.ErrUsage, err)
	}

	k := koanf.New(".")
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		usage(f)
		return nil, fmt.Errorf("%w: %v", errs.ErrUsage, err)
	}

	cfg := &Config{
		Stages:      stages,
		ScriptFile:  k.String("script"),
		Includes:    *includes,
		Sink:        k.String("output"),
		Decompress:  k.String("decompress"),
		Rate:        k.Float64("rate"),
		MetricsAddr: k.String("metrics-addr"),
		Debug:       k.Bool("debug"),
		FailFast:    k.Bool("fail-fast"),
		Kafka:       k.String("kafka"),
		Files:       f.Args(),
	}

	if cfg.ScriptFile != "" && len(cfg.Stages) > 0 {
		usage(f)
		return nil, fmt.Errorf("%w: -s is mutually exclusive with -e/--filter", errs.ErrUsage)
	}
	if cfg.ScriptFile == "" && len(cfg.Stages) == 0 {
		usage(f)
		return nil, fmt.Errorf("%w: need at least one -e, --filter, or -s", errs.ErrUsage)
	}

	return cfg, nil
}

func usage(f *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: linepipe [-e EXPR | --filter EXPR]... [-s FILE] [-I FILE]... [FILE... | --kafka SPEC]

A line-oriented text processor: each line is run through an ordered list of
Starlark-scripted stages and the result is written to the output sink.

Options:
`)
	f.PrintDefaults()
}
