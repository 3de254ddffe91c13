package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/caseymorris321/waterslab/internal/messaging/kafka"
)

type fakeClient struct {
	partitions    []int32
	partitionsErr error
	oldest        int64
	newest        int64
	offsetErr     error
	closed        bool
}

func (c *fakeClient) GetOffset(_ string, _ int32, at int64) (int64, error) {
	if c.offsetErr != nil {
		return 0, c.offsetErr
	}
	if at == sarama.OffsetOldest {
		return c.oldest, nil
	}
	return c.newest, nil
}

func (c *fakeClient) Partitions(string) ([]int32, error) {
	return c.partitions, c.partitionsErr
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

type fakePartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (pc *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return pc.messages }
func (pc *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return pc.errors }
func (pc *fakePartitionConsumer) Close() error                             { return nil }

type fakeConsumerSource struct {
	pc         partitionConsumer
	consumeErr error
	closed     bool
}

func (c *fakeConsumerSource) ConsumePartition(string, int32, int64) (partitionConsumer, error) {
	if c.consumeErr != nil {
		return nil, c.consumeErr
	}
	return c.pc, nil
}

func (c *fakeConsumerSource) Close() error {
	c.closed = true
	return nil
}

func eventMessage(t *testing.T, offset int64, eventType kafka.EventType) *sarama.ConsumerMessage {
	t.Helper()

	payload, err := json.Marshal(kafka.NewCartEvent(eventType, "guest:tok-1", 2, nil))
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: kafka.TopicCartEvents, Offset: offset, Value: payload}
}

func withTailCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"events-tail"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092 , ,broker-2:9092,")
	if len(brokers) != 2 || brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %v", brokers)
	}
	if got := parseBrokers(""); len(got) != 0 {
		t.Fatalf("expected no brokers, got %v", got)
	}
}

func TestReadConfig_FromFlags(t *testing.T) {
	withTailCLIArgs(t, []string{"-brokers=broker-1:9092", "-limit=7", "-from-oldest"}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if cfg.topic != kafka.TopicCartEvents {
			t.Errorf("expected default topic, got %s", cfg.topic)
		}
		if cfg.limit != 7 || !cfg.fromOldest {
			t.Errorf("unexpected config: %+v", cfg)
		}
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	cases := [][]string{
		{},
		{"-brokers=broker-1:9092", "-limit=0"},
		{"-brokers=broker-1:9092", "-topic="},
		{"-brokers=broker-1:9092", "-idle-timeout=0s"},
	}
	for _, args := range cases {
		withTailCLIArgs(t, args, func() {
			if _, err := readConfig(); err == nil {
				t.Errorf("expected validation error for args %v", args)
			}
		})
	}
}

func TestTailPartition_PrintsEvents(t *testing.T) {
	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, 3),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	pc.messages <- eventMessage(t, 0, kafka.EventTypeCartMutated)
	pc.messages <- eventMessage(t, 1, kafka.EventTypeCartMerged)

	client := &fakeClient{oldest: 0, newest: 2}
	consumer := &fakeConsumerSource{pc: pc}
	cfg := config{topic: kafka.TopicCartEvents, limit: 10, idleTimeout: 100 * time.Millisecond}

	stats, err := tailPartition(context.Background(), cfg, client, consumer, 0, cfg.limit)
	if err != nil {
		t.Fatalf("tailPartition failed: %v", err)
	}
	if stats.printed != 2 || stats.malformed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTailPartition_SkipsMalformed(t *testing.T) {
	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, 2),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	pc.messages <- &sarama.ConsumerMessage{Offset: 0, Value: []byte("not json")}
	pc.messages <- eventMessage(t, 1, kafka.EventTypeCartCleared)

	client := &fakeClient{oldest: 0, newest: 2}
	consumer := &fakeConsumerSource{pc: pc}
	cfg := config{topic: kafka.TopicCartEvents, limit: 10, idleTimeout: 100 * time.Millisecond}

	stats, err := tailPartition(context.Background(), cfg, client, consumer, 0, cfg.limit)
	if err != nil {
		t.Fatalf("tailPartition failed: %v", err)
	}
	if stats.printed != 1 || stats.malformed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTailPartition_EmptyPartition(t *testing.T) {
	client := &fakeClient{oldest: 5, newest: 5}
	consumer := &fakeConsumerSource{}
	cfg := config{topic: kafka.TopicCartEvents, limit: 10, idleTimeout: 50 * time.Millisecond}

	stats, err := tailPartition(context.Background(), cfg, client, consumer, 0, cfg.limit)
	if err != nil {
		t.Fatalf("tailPartition failed: %v", err)
	}
	if stats.printed != 0 {
		t.Fatalf("expected no printed events, got %+v", stats)
	}
}

func TestTailPartition_IdleTimeout(t *testing.T) {
	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage),
		errors:   make(chan *sarama.ConsumerError),
	}
	client := &fakeClient{oldest: 0, newest: 5}
	consumer := &fakeConsumerSource{pc: pc}
	cfg := config{topic: kafka.TopicCartEvents, limit: 10, idleTimeout: 50 * time.Millisecond}

	start := time.Now()
	stats, err := tailPartition(context.Background(), cfg, client, consumer, 0, cfg.limit)
	if err != nil {
		t.Fatalf("tailPartition failed: %v", err)
	}
	if stats.printed != 0 {
		t.Fatalf("expected no printed events, got %+v", stats)
	}
	if time.Since(start) < cfg.idleTimeout {
		t.Fatal("tailPartition returned before idle timeout")
	}
}

func TestTailPartition_OffsetError(t *testing.T) {
	client := &fakeClient{offsetErr: errors.New("offset lookup failed")}
	consumer := &fakeConsumerSource{}
	cfg := config{topic: kafka.TopicCartEvents, limit: 10, idleTimeout: 50 * time.Millisecond}

	if _, err := tailPartition(context.Background(), cfg, client, consumer, 0, cfg.limit); err == nil {
		t.Fatal("expected offset error")
	}
}

func TestRunTail_NoPartitions(t *testing.T) {
	client := &fakeClient{}
	consumer := &fakeConsumerSource{}
	cfg := config{topic: kafka.TopicCartEvents, limit: 10, idleTimeout: 50 * time.Millisecond}

	if err := runTail(context.Background(), cfg, client, consumer); err != nil {
		t.Fatalf("runTail with no partitions must succeed: %v", err)
	}
}

func TestRunTail_RequiresDependencies(t *testing.T) {
	cfg := config{topic: kafka.TopicCartEvents, limit: 10, idleTimeout: 50 * time.Millisecond}

	if err := runTail(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestRun_UsesDependencies(t *testing.T) {
	client := &fakeClient{partitions: []int32{0}, oldest: 0, newest: 0}
	consumer := &fakeConsumerSource{}

	oldDeps := newTailDependencies
	newTailDependencies = func(config) (offsetClient, partitionConsumerSource, error) {
		return client, consumer, nil
	}
	defer func() { newTailDependencies = oldDeps }()

	cfg := config{
		brokers:     []string{"broker-1:9092"},
		topic:       kafka.TopicCartEvents,
		limit:       10,
		idleTimeout: 50 * time.Millisecond,
	}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !client.closed || !consumer.closed {
		t.Fatal("run must close its dependencies")
	}
}
