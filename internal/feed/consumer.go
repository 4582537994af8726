package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

// KinesisReadAPI is the consumer side of the Kinesis client
type KinesisReadAPI interface {
	DescribeStream(ctx context.Context, params *kinesis.DescribeStreamInput, optFns ...func(*kinesis.Options)) (*kinesis.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
}

// Consumer polls every shard of a Kinesis stream and republishes decoded change events to a local sink
type Consumer struct {
	client       KinesisReadAPI
	streamName   string
	sink         Publisher
	pollInterval time.Duration

	// dispatch serializes sink delivery across shards
	dispatch sync.Mutex
}

func NewConsumer(client KinesisReadAPI, streamName string, sink Publisher) *Consumer {
	return &Consumer{
		client:       client,
		streamName:   streamName,
		sink:         sink,
		pollInterval: time.Second,
	}
}

// Run blocks until ctx is cancelled and every shard poller has exited
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("Starting Kinesis consumer", "stream", c.streamName)

	describeOutput, err := c.client.DescribeStream(ctx, &kinesis.DescribeStreamInput{
		StreamName: aws.String(c.streamName),
	})
	if err != nil {
		return fmt.Errorf("failed to describe Kinesis stream: %w", err)
	}

	var wg sync.WaitGroup
	for _, shard := range describeOutput.StreamDescription.Shards {
		wg.Add(1)
		go func(shardID string) {
			defer wg.Done()
			c.processShard(ctx, shardID)
		}(aws.ToString(shard.ShardId))
	}

	wg.Wait()
	slog.Info("Kinesis consumer stopped", "stream", c.streamName)
	return nil
}

func (c *Consumer) processShard(ctx context.Context, shardID string) {
	slog.Info("Processing shard", "shard_id", shardID)

	iteratorOutput, err := c.client.GetShardIterator(ctx, &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(c.streamName),
		ShardId:           aws.String(shardID),
		ShardIteratorType: types.ShardIteratorTypeLatest,
	})
	if err != nil {
		slog.Error("Failed to get shard iterator", "error", err, "shard_id", shardID)
		return
	}

	shardIterator := iteratorOutput.ShardIterator

	for {
		if shardIterator == nil {
			slog.Warn("Shard iterator is nil, stopping", "shard_id", shardID)
			return
		}

		recordsOutput, err := c.client.GetRecords(ctx, &kinesis.GetRecordsInput{
			ShardIterator: shardIterator,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Failed to get records", "error", err, "shard_id", shardID)
			if !c.wait(ctx) {
				return
			}
			continue
		}

		for _, record := range recordsOutput.Records {
			c.processRecord(ctx, record)
		}

		shardIterator = recordsOutput.NextShardIterator
		if !c.wait(ctx) {
			slog.Info("Stopping shard processing", "shard_id", shardID)
			return
		}
	}
}

func (c *Consumer) processRecord(ctx context.Context, record types.Record) {
	var event Event
	if err := json.Unmarshal(record.Data, &event); err != nil {
		slog.Error("Failed to unmarshal job event record", "error", err)
		return
	}
	if event.Job == nil {
		slog.Warn("Skipping job event without record", "event_type", event.Type)
		return
	}

	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	if err := c.sink.Publish(ctx, event); err != nil {
		slog.Error("Failed to dispatch job event", "job_id", event.Job.ID, "error", err)
	}
}

// wait sleeps for the poll interval and reports false once ctx is done
func (c *Consumer) wait(ctx context.Context) bool {
	t := time.NewTimer(c.pollInterval)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
