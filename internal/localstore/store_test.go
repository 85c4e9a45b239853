package localstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, p Provider) {
	ctx := context.Background()
	a := p.Device(uuid.NewString())
	b := p.Device(uuid.NewString())

	_, err := a.Get(ctx, "authToken")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, a.Set(ctx, "authToken", "t1"))
	require.NoError(t, a.Set(ctx, "authToken", "t2"))
	v, err := a.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.Equal(t, "t2", v)

	_, err = b.Get(ctx, "authToken")
	assert.ErrorIs(t, err, ErrNotFound, "devices must not share keys")

	require.NoError(t, a.Set(ctx, "userData", "{}"))
	require.NoError(t, a.Delete(ctx, "authToken", "userData"))
	_, err = a.Get(ctx, "userData")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProvider(t *testing.T) {
	exerciseStore(t, NewMemoryProvider(time.Hour))
}

func TestMemoryProviderReturnsSameStore(t *testing.T) {
	p := NewMemoryProvider(time.Hour)
	ctx := context.Background()
	require.NoError(t, p.Device("d1").Set(ctx, "k", "v"))
	v, err := p.Device("d1").Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestMemoryProviderHoldsOnlyWrittenDevices(t *testing.T) {
	p := NewMemoryProvider(time.Hour)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, err := p.Device(uuid.NewString()).Get(ctx, "authToken")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Zero(t, p.Len())

	d := p.Device("d1")
	require.NoError(t, d.Set(ctx, "authToken", "t"))
	assert.Equal(t, 1, p.Len())
	require.NoError(t, d.Delete(ctx, "authToken"))
	assert.Zero(t, p.Len())
}

func TestMemoryProviderExpiresIdleDevices(t *testing.T) {
	p := NewMemoryProvider(time.Hour)
	now := time.Unix(1700000000, 0)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, p.Device("idle").Set(ctx, "k", "v"))
	now = now.Add(59 * time.Minute)
	require.NoError(t, p.Device("busy").Set(ctx, "k", "v"))
	v, err := p.Device("idle").Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, err = p.Device("idle").Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	now = now.Add(2 * time.Hour)
	require.NoError(t, p.Device("fresh").Set(ctx, "k", "v"))
	assert.Equal(t, 1, p.Len(), "idle devices are swept on write")
}

func TestRedisProvider(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	exerciseStore(t, NewRedisProvider(client, time.Minute))
}
