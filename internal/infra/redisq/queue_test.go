package redisq

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sergeevgit1/camoufox-automation/internal/config"
	"github.com/sergeevgit1/camoufox-automation/internal/domain"
)

func startRedis(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cli := New(config.Redis{
		Addr:      fmt.Sprintf("%s:%s", host, port.Port()),
		StreamKey: "camoufox:dispatch:test",
		Group:     "executors-test",
	})
	require.NoError(t, cli.Init(ctx))
	return cli
}

func TestEnqueueClaimAck(t *testing.T) {
	cli := startRedis(t)
	ctx := context.Background()

	d := domain.Dispatch{
		TaskID:     42,
		SessionID:  7,
		Action:     domain.ActionNavigate,
		Parameters: domain.Params{"url": "https://example.com", "headless": true},
	}
	streamID, err := cli.Enqueue(ctx, d)
	require.NoError(t, err)
	assert.NotEmpty(t, streamID)

	got, claimedID, err := cli.Claim(ctx, "consumer-1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, streamID, claimedID)
	assert.Equal(t, int64(42), got.TaskID)
	assert.Equal(t, int64(7), got.SessionID)
	assert.Equal(t, domain.ActionNavigate, got.Action)
	assert.Equal(t, "https://example.com", got.Parameters["url"])
	assert.Equal(t, true, got.Parameters["headless"])

	require.NoError(t, cli.Ack(ctx, claimedID))

	// Stream drained: a further claim blocks until timeout and yields nothing.
	got, _, err = cli.Claim(ctx, "consumer-1", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClaimIsExclusive(t *testing.T) {
	cli := startRedis(t)
	ctx := context.Background()

	_, err := cli.Enqueue(ctx, domain.Dispatch{TaskID: 1, SessionID: 1, Action: domain.ActionClick})
	require.NoError(t, err)

	first, _, err := cli.Claim(ctx, "consumer-1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)

	// The same message is not delivered to a second consumer in the group.
	second, _, err := cli.Claim(ctx, "consumer-2", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, second)
}
