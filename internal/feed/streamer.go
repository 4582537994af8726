package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
)

// KinesisPutAPI is the producer side of the Kinesis client
type KinesisPutAPI interface {
	PutRecord(ctx context.Context, params *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

// Streamer publishes job change events to a Kinesis stream, partitioned by job id
type Streamer struct {
	client     KinesisPutAPI
	streamName string
}

func NewStreamer(client KinesisPutAPI, streamName string) *Streamer {
	return &Streamer{
		client:     client,
		streamName: streamName,
	}
}

func (s *Streamer) Publish(ctx context.Context, event Event) error {
	if event.Job == nil {
		return fmt.Errorf("change event has no job")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	_, err = s.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(s.streamName),
		Data:         data,
		PartitionKey: aws.String(event.Job.ID),
	})
	if err != nil {
		slog.Error("Failed to stream job event", "job_id", event.Job.ID, "event_type", event.Type, "error", err)
		return fmt.Errorf("failed to put job event: %w", err)
	}

	slog.Debug("Streamed job event", "job_id", event.Job.ID, "event_type", event.Type)
	return nil
}
