package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TaskReap      = "reap"
	TaskThumbnail = "thumbnail"
)

// Producer appends tasks to the worker stream.
type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

// Enqueue adds a task and returns its stream id. fields must not contain
// "type"; it is set from taskType.
func (p *Producer) Enqueue(ctx context.Context, taskType string, fields map[string]any) (string, error) {
	if p == nil || p.client == nil {
		return "", nil
	}
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	values["type"] = taskType

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return id, nil
}
