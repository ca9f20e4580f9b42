package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sergeevgit1/camoufox-automation/internal/domain"
	"github.com/sergeevgit1/camoufox-automation/internal/ports"
)

var _ ports.Queue = (*Client)(nil)

func (c *Client) Enqueue(ctx context.Context, d domain.Dispatch) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode dispatch: %w", err)
	}
	id, err := c.Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.Cfg.StreamKey,
		Values: map[string]interface{}{"dispatch": b},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue dispatch for task %d: %w", d.TaskID, err)
	}
	return id, nil
}

func (c *Client) Claim(ctx context.Context, consumer string, block time.Duration) (*domain.Dispatch, string, error) {
	res, err := c.Rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.Cfg.Group,
		Consumer: consumer,
		Streams:  []string{c.Cfg.StreamKey, ">"},
		Count:    1,
		Block:    block,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := res[0].Messages[0]
	raw := msg.Values["dispatch"]
	var d domain.Dispatch
	switch v := raw.(type) {
	case string:
		err = json.Unmarshal([]byte(v), &d)
	case []byte:
		err = json.Unmarshal(v, &d)
	default:
		return nil, "", fmt.Errorf("unexpected dispatch type: %T", v)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode dispatch %s: %w", msg.ID, err)
	}
	return &d, msg.ID, nil
}

func (c *Client) Ack(ctx context.Context, streamID string) error {
	return c.Rdb.XAck(ctx, c.Cfg.StreamKey, c.Cfg.Group, streamID).Err()
}
