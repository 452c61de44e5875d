package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	cmd := redis.NewStringCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	cmd := redis.NewStatusCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetErr(args.Error(0))
	return cmd
}

func TestRedisGet(t *testing.T) {
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		client := new(MockRedisClient)
		price := int64(12300)
		stored := supplier.Result{Query: "67-64-1", Brand: "Daejung", Items: []supplier.Record{
			supplier.NewRecord("Daejung", "1009-4400", &price),
		}}
		raw, err := json.Marshal(stored)
		require.NoError(t, err)

		client.On("Get", ctx, "chemscrape:search:k").Return(string(raw), nil)

		got, err := NewRedis(client).Get(ctx, "k")
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, int64(11100), *got.Items[0].DiscountPrice)
		client.AssertExpectations(t)
	})

	t.Run("miss", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "chemscrape:search:k").Return("", redis.Nil)

		_, err := NewRedis(client).Get(ctx, "k")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("connection error", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "chemscrape:search:k").Return("", errors.New("dial tcp: refused"))

		_, err := NewRedis(client).Get(ctx, "k")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrMiss)
	})

	t.Run("corrupt value", func(t *testing.T) {
		client := new(MockRedisClient)
		client.On("Get", ctx, "chemscrape:search:k").Return("{not json", nil)

		_, err := NewRedis(client).Get(ctx, "k")
		assert.ErrorContains(t, err, "decode")
	})
}

func TestRedisSet(t *testing.T) {
	ctx := context.Background()
	client := new(MockRedisClient)

	client.On("Set", ctx, "chemscrape:search:k", mock.MatchedBy(func(v interface{}) bool {
		raw, ok := v.([]byte)
		if !ok {
			return false
		}
		var res supplier.Result
		return json.Unmarshal(raw, &res) == nil && res.Query == "acetone"
	}), 30*time.Second).Return(nil)

	err := NewRedis(client).Set(ctx, "k", &supplier.Result{Query: "acetone"}, 30*time.Second)
	require.NoError(t, err)
	client.AssertExpectations(t)

	err = NewRedis(client).Set(ctx, "k", nil, 30*time.Second)
	assert.NoError(t, err)
	client.AssertNumberOfCalls(t, "Set", 1)
}
