package driver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/dloss/linepipe/internal/errs"
)

// KafkaConfig parses the --kafka flag value, "brokers=host:9092;host2:9092,topic=name[,group=g]".
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// ParseKafkaConfig decodes the comma-separated key=value spec accepted by
// --kafka.
func ParseKafkaConfig(spec string) (KafkaConfig, error) {
	var cfg KafkaConfig
	for _, kv := range strings.Split(spec, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return cfg, fmt.Errorf("%w: --kafka %q: expected key=value", errs.ErrUsage, kv)
		}
		switch k {
		case "brokers":
			cfg.Brokers = strings.Split(v, ";")
		case "topic":
			cfg.Topic = v
		case "group":
			cfg.Group = v
		default:
			return cfg, fmt.Errorf("%w: --kafka: unknown key %q", errs.ErrUsage, k)
		}
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return cfg, fmt.Errorf("%w: --kafka requires brokers= and topic=", errs.ErrUsage)
	}
	return cfg, nil
}

// kafkaSource reads one Kafka record per line, treating each record's value
// as a line of text.
type kafkaSource struct {
	cfg     KafkaConfig
	client  *kgo.Client
	ctx     context.Context
	pending []byte
}

func NewKafkaSource(ctx context.Context, cfg KafkaConfig) Source {
	return &kafkaSource{cfg: cfg, ctx: ctx}
}

func (s *kafkaSource) DisplayName() string {
	return "kafka:" + s.cfg.Topic
}

func (s *kafkaSource) Open() (io.ReadCloser, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumeTopics(s.cfg.Topic),
	}
	if s.cfg.Group != "" {
		opts = append(opts, kgo.ConsumerGroup(s.cfg.Group))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: --kafka: %v", errs.ErrIO, err)
	}
	s.client = client
	return s, nil
}

// Read implements io.Reader by polling Kafka for fetches and serving one
// record's value, newline-terminated, at a time.
func (s *kafkaSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		fetches := s.client.PollFetches(s.ctx)
		if s.ctx.Err() != nil {
			return 0, io.EOF
		}
		if fetchErrs := fetches.Errors(); len(fetchErrs) > 0 {
			return 0, fmt.Errorf("%w: kafka: %v", errs.ErrIO, fetchErrs[0].Err)
		}

		fetches.EachRecord(func(r *kgo.Record) {
			s.pending = append(s.pending, r.Value...)
			s.pending = append(s.pending, '\n')
		})

		if fetches.Empty() && s.ctx.Err() != nil {
			return 0, io.EOF
		}
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *kafkaSource) Close() error {
	s.client.Close()
	return nil
}
