package driver

import "testing"

func TestParseKafkaConfig(t *testing.T) {
	cfg, err := ParseKafkaConfig("brokers=h1:9092;h2:9092,topic=lines,group=g1")
	if err != nil {
		t.Fatalf("ParseKafkaConfig: %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "h1:9092" || cfg.Brokers[1] != "h2:9092" {
		t.Errorf("brokers: got %v", cfg.Brokers)
	}
	if cfg.Topic != "lines" || cfg.Group != "g1" {
		t.Errorf("topic/group: got %q/%q", cfg.Topic, cfg.Group)
	}
}

func TestParseKafkaConfigRequiresBrokersAndTopic(t *testing.T) {
	if _, err := ParseKafkaConfig("topic=lines"); err == nil {
		t.Error("expected an error for a missing brokers= key")
	}
	if _, err := ParseKafkaConfig("brokers=h1:9092"); err == nil {
		t.Error("expected an error for a missing topic= key")
	}
}

func TestParseKafkaConfigRejectsUnknownKey(t *testing.T) {
	if _, err := ParseKafkaConfig("brokers=h1:9092,topic=t,bogus=1"); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestParseKafkaConfigRejectsMalformedPair(t *testing.T) {
	if _, err := ParseKafkaConfig("brokers"); err == nil {
		t.Error("expected an error for a key without =value")
	}
}
