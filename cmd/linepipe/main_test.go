package main

import (
	"context"
	"testing"

	"github.com/dloss/linepipe/internal/cli"
)

func TestBuildSourcesKafkaTakesPrecedenceOverFiles(t *testing.T) {
	cfg := &cli.Config{
		Kafka: "brokers=localhost:9092,topic=lines",
		Files: []string{"ignored.log"},
	}
	sources, err := buildSources(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildSources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	if sources[0].DisplayName() != "kafka:lines" {
		t.Errorf("got source %q, want kafka:lines", sources[0].DisplayName())
	}
}

func TestBuildSourcesRejectsMalformedKafkaSpec(t *testing.T) {
	cfg := &cli.Config{Kafka: "brokers=localhost:9092"}
	if _, err := buildSources(context.Background(), cfg); err == nil {
		t.Fatal("expected an error for a --kafka spec missing topic=")
	}
}

func TestBuildSourcesFallsBackToStdinWithNoFilesOrKafka(t *testing.T) {
	cfg := &cli.Config{}
	sources, err := buildSources(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildSources: %v", err)
	}
	if len(sources) != 1 || sources[0].DisplayName() != "" {
		t.Errorf("got %+v, want one stdin source", sources)
	}
}
