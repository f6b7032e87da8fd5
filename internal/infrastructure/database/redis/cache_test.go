package redis

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/internal/application/screening"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

// The screening service consumes the cache through its own narrower interface.
var _ screening.Cache = Cache(nil)

// fakeCommander is an in-memory stand-in for the client's command surface.
type fakeCommander struct {
	mu      sync.Mutex
	store   map[string]string
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	pingErr error
	sets    int
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		store: make(map[string]string),
		ttls:  make(map[string]time.Duration),
	}
}

func (f *fakeCommander) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.store[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommander) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.store[key] = string(v)
	case string:
		f.store[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommander) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.store[k]; ok {
			delete(f.store, k)
			delete(f.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCommander) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(match, "*")
	var keys []string
	for k := range f.store {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	cmd := redis.NewScanCmd(ctx, nil)
	cmd.SetVal(keys, 0)
	return cmd
}

func (f *fakeCommander) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeCommander) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[key]
	return v, ok
}

type descriptorSet struct {
	Weight float64 `json:"weight"`
	CLogP  float64 `json:"clogp"`
}

func TestCache_GetOrCompute_MissComputesOnceAndStores(t *testing.T) {
	fake := newFakeCommander()
	cache := newCache(fake, logging.NewNopLogger(), WithPrefix("test:"))

	computes := 0
	compute := func(context.Context) (interface{}, error) {
		computes++
		return descriptorSet{Weight: 288.3, CLogP: 1.2}, nil
	}

	var got descriptorSet
	require.NoError(t, cache.GetOrCompute(context.Background(), "descriptors:abc", &got, compute))
	assert.Equal(t, 1, computes)
	assert.InDelta(t, 288.3, got.Weight, 1e-9)

	stored, ok := fake.get("test:descriptors:abc")
	require.True(t, ok)
	assert.Contains(t, stored, "288.3")

	// Second call is served from the cache.
	var again descriptorSet
	require.NoError(t, cache.GetOrCompute(context.Background(), "descriptors:abc", &again, compute))
	assert.Equal(t, 1, computes)
	assert.Equal(t, got, again)
}

func TestCache_GetOrCompute_HitSkipsCompute(t *testing.T) {
	fake := newFakeCommander()
	data, err := json.Marshal(descriptorSet{Weight: 180.2, CLogP: -0.7})
	require.NoError(t, err)
	fake.store["test:descriptors:xyz"] = string(data)

	cache := newCache(fake, logging.NewNopLogger(), WithPrefix("test:"))

	var got descriptorSet
	err = cache.GetOrCompute(context.Background(), "descriptors:xyz", &got,
		func(context.Context) (interface{}, error) {
			t.Fatal("compute must not run on a cache hit")
			return nil, nil
		})
	require.NoError(t, err)
	assert.InDelta(t, -0.7, got.CLogP, 1e-9)
}

func TestCache_GetOrCompute_CollapsesConcurrentMisses(t *testing.T) {
	fake := newFakeCommander()
	cache := newCache(fake, logging.NewNopLogger())

	var mu sync.Mutex
	computes := 0
	compute := func(context.Context) (interface{}, error) {
		mu.Lock()
		computes++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return descriptorSet{Weight: 42}, nil
	}

	var start, done sync.WaitGroup
	start.Add(1)
	for i := 0; i < 8; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			var got descriptorSet
			assert.NoError(t, cache.GetOrCompute(context.Background(), "descriptors:shared", &got, compute))
			assert.InDelta(t, 42.0, got.Weight, 1e-9)
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, 1, computes)
}

func TestCache_GetOrCompute_ComputeErrorPropagates(t *testing.T) {
	fake := newFakeCommander()
	cache := newCache(fake, logging.NewNopLogger())

	boom := errors.New(errors.ErrCodeDescriptorFailed, "perception failed")
	var got descriptorSet
	err := cache.GetOrCompute(context.Background(), "descriptors:bad", &got,
		func(context.Context) (interface{}, error) { return nil, boom })

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDescriptorFailed))
	_, stored := fake.get("fragelab:descriptors:bad")
	assert.False(t, stored)
}

func TestCache_GetOrCompute_StoreFailureStillServesValue(t *testing.T) {
	fake := newFakeCommander()
	fake.setErr = errors.New(errors.ErrCodeCache, "OOM command not allowed")
	cache := newCache(fake, logging.NewNopLogger())

	var got descriptorSet
	err := cache.GetOrCompute(context.Background(), "descriptors:k", &got,
		func(context.Context) (interface{}, error) {
			return descriptorSet{Weight: 10}, nil
		})

	require.NoError(t, err)
	assert.InDelta(t, 10.0, got.Weight, 1e-9)
}

func TestCache_GetOrCompute_InfraErrorSurfaces(t *testing.T) {
	fake := newFakeCommander()
	fake.getErr = errors.New(errors.ErrCodeCache, "connection refused")
	cache := newCache(fake, logging.NewNopLogger())

	var got descriptorSet
	err := cache.GetOrCompute(context.Background(), "descriptors:k", &got,
		func(context.Context) (interface{}, error) {
			t.Fatal("compute must not run when the cache read errors")
			return nil, nil
		})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCache))
}

func TestCache_Get_MissReturnsErrCacheMiss(t *testing.T) {
	cache := newCache(newFakeCommander(), logging.NewNopLogger())

	var got descriptorSet
	err := cache.Get(context.Background(), "absent", &got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestCache_Set_AppliesPrefixAndJitteredTTL(t *testing.T) {
	fake := newFakeCommander()
	cache := newCache(fake, logging.NewNopLogger(), WithPrefix("molforge:"))

	require.NoError(t, cache.Set(context.Background(), "k", descriptorSet{Weight: 1}, time.Minute))

	_, ok := fake.get("molforge:k")
	require.True(t, ok)
	ttl := fake.ttls["molforge:k"]
	assert.GreaterOrEqual(t, ttl, 54*time.Second)
	assert.LessOrEqual(t, ttl, 66*time.Second)
}

func TestCache_DeleteByPrefix(t *testing.T) {
	fake := newFakeCommander()
	fake.store["fragelab:descriptors:a"] = "{}"
	fake.store["fragelab:descriptors:b"] = "{}"
	fake.store["fragelab:other:c"] = "{}"

	cache := newCache(fake, logging.NewNopLogger())

	deleted, err := cache.DeleteByPrefix(context.Background(), "descriptors:")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	_, ok := fake.get("fragelab:other:c")
	assert.True(t, ok)
}

func TestJitterTTL_StaysWithinBounds(t *testing.T) {
	c := newCache(newFakeCommander(), logging.NewNopLogger())

	assert.Equal(t, time.Duration(0), c.jitterTTL(0))
	for i := 0; i < 200; i++ {
		got := c.jitterTTL(10 * time.Minute)
		assert.GreaterOrEqual(t, got, 9*time.Minute)
		assert.LessOrEqual(t, got, 11*time.Minute)
	}
}
