// Package checkpoint persists and recovers per-task progress markers
// against a compacted Kafka topic, using github.com/twmb/franz-go's
// pkg/kgo client. Workers use it to resume from their last committed
// offset after a restart. The application master only wires it up and,
// at startup, loads the stored offsets to log how many tasks have one;
// it does not use them to bind or resume tasks.
package checkpoint

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/cuemby/streamtask/pkg/jobstate"
)

// Record is one task's durable progress marker.
type Record struct {
	TaskID jobstate.TaskID
	Offset int64
}

// Store reads and writes checkpoint records for one job against a
// single compacted topic, keyed by task ID.
type Store struct {
	client *kgo.Client
	topic  string
	logger zerolog.Logger
}

// Config configures the underlying Kafka client.
type Config struct {
	Brokers []string
	Topic   string
}

// NewStore dials the configured brokers and returns a Store. The
// caller must call Close when done.
func NewStore(cfg Config, logger zerolog.Logger) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ConsumeTopics(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: failed to construct Kafka client: %w", err)
	}
	return &Store{
		client: client,
		topic:  cfg.Topic,
		logger: logger.With().Str("component", "checkpoint").Logger(),
	}, nil
}

// Close releases the underlying Kafka client.
func (s *Store) Close() {
	s.client.Close()
}

// Save durably records taskID's offset. Keyed records on a compacted
// topic mean only the latest offset per task survives compaction.
func (s *Store) Save(ctx context.Context, taskID jobstate.TaskID, offset int64) error {
	record := &kgo.Record{
		Topic: s.topic,
		Key:   encodeKey(taskID),
		Value: encodeOffset(offset),
	}
	result := s.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("checkpoint: failed to save offset for task %d: %w", taskID, err)
	}
	s.logger.Debug().Int("task_id", int(taskID)).Int64("offset", offset).Msg("checkpoint saved")
	return nil
}

// LoadAll reads every task's most recent checkpoint by draining the
// topic to its current high-water mark. It is meant to be called once
// at job startup, before OnInit hands out partitions.
func (s *Store) LoadAll(ctx context.Context) (map[jobstate.TaskID]int64, error) {
	offsets := make(map[jobstate.TaskID]int64)
	for {
		fetches := s.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return offsets, fmt.Errorf("checkpoint: context cancelled while loading: %w", err)
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			return offsets, fmt.Errorf("checkpoint: fetch error: %w", errs[0].Err)
		}
		if fetches.Empty() {
			return offsets, nil
		}
		fetches.EachRecord(func(record *kgo.Record) {
			taskID, offset, err := decodeRecord(record.Key, record.Value)
			if err != nil {
				s.logger.Warn().Err(err).Msg("checkpoint: ignoring malformed record")
				return
			}
			offsets[taskID] = offset
		})
	}
}

func encodeKey(taskID jobstate.TaskID) []byte {
	return []byte(strconv.Itoa(int(taskID)))
}

func encodeOffset(offset int64) []byte {
	return []byte(strconv.FormatInt(offset, 10))
}

func decodeRecord(key, value []byte) (jobstate.TaskID, int64, error) {
	taskIDInt, err := strconv.Atoi(string(key))
	if err != nil {
		return 0, 0, fmt.Errorf("non-numeric key %q: %w", key, err)
	}
	offset, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("non-numeric value %q: %w", value, err)
	}
	return jobstate.TaskID(taskIDInt), offset, nil
}
