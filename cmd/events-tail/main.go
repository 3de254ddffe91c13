package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/caseymorris321/waterslab/internal/messaging/kafka"
)

// events-tail — отладочная утилита: читает хвост топика событий корзины
// и печатает декодированные события. Ограничена limit сообщениями,
// завершается по idle-timeout.

const (
	defaultTailLimit   = 50
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	topic       string
	limit       int
	fromOldest  bool
	idleTimeout time.Duration
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

var newTailDependencies = func(cfg config) (offsetClient, partitionConsumerSource, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return client, saramaConsumerAdapter{consumer: rawConsumer}, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("events tail failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.topic, "topic", kafka.TopicCartEvents, "cart events topic")
	flag.IntVar(&cfg.limit, "limit", defaultTailLimit, "max number of messages to print")
	flag.BoolVar(&cfg.fromOldest, "from-oldest", false, "start from the oldest retained offset instead of the tail")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}

	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	if strings.TrimSpace(cfg.topic) == "" {
		return config{}, fmt.Errorf("topic is required")
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0")
	}
	if cfg.idleTimeout <= 0 {
		return config{}, fmt.Errorf("idle-timeout must be > 0")
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"topic":       cfg.topic,
		"limit":       cfg.limit,
		"from_oldest": cfg.fromOldest,
	}).Info("starting cart events tail")

	client, consumer, err := newTailDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	return runTail(ctx, cfg, client, consumer)
}

func runTail(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource) error {
	if client == nil || consumer == nil {
		return fmt.Errorf("kafka client and consumer are required")
	}

	partitions, err := client.Partitions(cfg.topic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", cfg.topic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.topic).Warn("topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var printed, malformed int
	for _, partition := range partitions {
		if printed >= cfg.limit {
			break
		}

		stats, err := tailPartition(ctx, cfg, client, consumer, partition, cfg.limit-printed)
		if err != nil {
			return err
		}
		printed += stats.printed
		malformed += stats.malformed
	}

	log.WithFields(log.Fields{
		"printed":   printed,
		"malformed": malformed,
	}).Info("cart events tail finished")

	return nil
}

type tailStats struct {
	printed   int
	malformed int
}

func tailPartition(
	ctx context.Context,
	cfg config,
	client offsetClient,
	consumer partitionConsumerSource,
	partition int32,
	limit int,
) (tailStats, error) {
	var stats tailStats
	if limit <= 0 {
		return stats, nil
	}

	oldest, err := client.GetOffset(cfg.topic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.topic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	startOffset := oldest
	if !cfg.fromOldest {
		startOffset = newest - int64(limit)
		if startOffset < oldest {
			startOffset = oldest
		}
	}

	pc, err := consumer.ConsumePartition(cfg.topic, partition, startOffset)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idleTimer := time.NewTimer(cfg.idleTimeout)
	defer idleTimer.Stop()

	for stats.printed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case err := <-pc.Errors():
			if err != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, err)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil {
				return stats, nil
			}

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(cfg.idleTimeout)

			printEvent(msg, &stats)

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idleTimer.C:
			return stats, nil
		}
	}

	return stats, nil
}

func printEvent(msg *sarama.ConsumerMessage, stats *tailStats) {
	var event kafka.CartEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.EventType == "" {
		stats.malformed++
		log.WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("skip malformed cart event")
		return
	}

	stats.printed++
	log.WithFields(log.Fields{
		"partition":  msg.Partition,
		"offset":     msg.Offset,
		"event_type": string(event.EventType),
		"owner":      event.OwnerKey,
		"item_count": event.ItemCount,
		"timestamp":  event.Timestamp,
	}).Info("cart event")
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
