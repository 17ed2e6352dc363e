package transform_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
	"github.com/MasterOfBinary/malbatch/transform"
)

type counted struct {
	Hash  string `json:"hash"`
	Calls int64  `json:"calls"`
}

// counter returns a transform that counts how often it runs.
func counter() (batch.Transform, *atomic.Int64) {
	var calls atomic.Int64
	t := batch.TransformFunc(func(_ context.Context, _ dataset.Provider, s *sample.Sample) (interface{}, error) {
		return counted{Hash: s.Hash(), Calls: calls.Add(1)}, nil
	})
	return t, &calls
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// fileProvider creates a BODMAS-style provider over a new directory holding
// one <hash>.exe file per entry of files.
func fileProvider(t *testing.T, name string, files map[string]string) *dataset.FileProvider {
	t.Helper()

	dir := t.TempDir()
	for hash, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, hash+".exe"), []byte(content), 0o600))
	}

	p, err := dataset.NewFile(dataset.FileConfig{
		Name:     name,
		Resolver: dataset.StaticDir(dir),
		Codec:    dataset.BodmasCodec(),
	})
	require.NoError(t, err)
	return p
}

func TestNewCached(t *testing.T) {
	_, client := newRedis(t)
	inner, _ := counter()

	_, err := transform.NewCached(nil, client, transform.CacheConfig{Name: "x"})
	assert.Error(t, err)

	_, err = transform.NewCached(inner, nil, transform.CacheConfig{Name: "x"})
	assert.Error(t, err)

	_, err = transform.NewCached(inner, client, transform.CacheConfig{})
	assert.Error(t, err, "unnamed transform")

	c, err := transform.NewCached(transform.Named("count", inner), client, transform.CacheConfig{Prefix: "mb:"})
	require.NoError(t, err)
	assert.Equal(t, "mb:count:bodmas:abc", c.Key("bodmas", "abc"))
	assert.Equal(t, "count", c.TransformName())
}

func TestCached(t *testing.T) {
	const hash = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	mr, client := newRedis(t)
	inner, calls := counter()
	c, err := transform.NewCached(inner, client, transform.CacheConfig{
		Prefix: "mb:",
		TTL:    time.Hour,
		Name:   "count",
	})
	require.NoError(t, err)

	p := fileProvider(t, "bodmas", map[string]string{hash: "x"})
	ctx := context.Background()
	s, err := p.Sample(ctx, hash)
	require.NoError(t, err)

	v, err := c.Apply(ctx, p, s)
	require.NoError(t, err)
	assert.Equal(t, counted{Hash: hash, Calls: 1}, v)

	stored, err := mr.Get("mb:count:bodmas:" + hash)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hash":"`+hash+`","calls":1}`, stored)
	assert.Equal(t, time.Hour, mr.TTL("mb:count:bodmas:"+hash))

	v, err = c.Apply(ctx, p, s)
	require.NoError(t, err)
	raw, ok := v.(json.RawMessage)
	require.True(t, ok, "cached value is %T", v)
	assert.JSONEq(t, stored, string(raw))
	assert.Equal(t, int64(1), calls.Load())

	mr.FastForward(2 * time.Hour)
	v, err = c.Apply(ctx, p, s)
	require.NoError(t, err)
	assert.Equal(t, counted{Hash: hash, Calls: 2}, v)
}

func TestCached_NoHash(t *testing.T) {
	mr, client := newRedis(t)
	inner, calls := counter()
	c, err := transform.NewCached(inner, client, transform.CacheConfig{Name: "count"})
	require.NoError(t, err)

	p := fileProvider(t, "bodmas", nil)
	s := writeSample(t, "x", "")
	for i := 0; i < 2; i++ {
		_, err := c.Apply(context.Background(), p, s)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestCached_NoProvider(t *testing.T) {
	const hash = "dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd"

	mr, client := newRedis(t)
	inner, calls := counter()
	c, err := transform.NewCached(inner, client, transform.CacheConfig{Name: "count"})
	require.NoError(t, err)

	s := writeSample(t, "x", hash)
	for i := 0; i < 2; i++ {
		_, err := c.Apply(context.Background(), nil, s)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestCached_ProvidersShareHash(t *testing.T) {
	const hash = "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

	mr, client := newRedis(t)
	c, err := transform.NewCached(transform.Size, client, transform.CacheConfig{
		Prefix: "mb:",
		Name:   transform.SizeName,
	})
	require.NoError(t, err)

	packed := fileProvider(t, "bodmas", map[string]string{hash: "abc"})
	armed := fileProvider(t, "bodmas_armed", map[string]string{hash: "abcdefgh"})
	ctx := context.Background()

	apply := func(p dataset.Provider) interface{} {
		t.Helper()
		s, err := p.Sample(ctx, hash)
		require.NoError(t, err)
		v, err := c.Apply(ctx, p, s)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, transform.SizeResult{Size: 3}, apply(packed))
	assert.Equal(t, transform.SizeResult{Size: 8}, apply(armed), "same hash in another provider is not a cache hit")

	v := apply(armed)
	raw, ok := v.(json.RawMessage)
	require.True(t, ok, "cached value is %T", v)
	assert.JSONEq(t, `{"size":8}`, string(raw))

	v = apply(packed)
	raw, ok = v.(json.RawMessage)
	require.True(t, ok, "cached value is %T", v)
	assert.JSONEq(t, `{"size":3}`, string(raw))

	assert.ElementsMatch(t, []string{
		"mb:" + transform.SizeName + ":bodmas:" + hash,
		"mb:" + transform.SizeName + ":bodmas_armed:" + hash,
	}, mr.Keys())
}

func TestCached_Errors(t *testing.T) {
	const hash = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"

	mr, client := newRedis(t)
	p := fileProvider(t, "bodmas", map[string]string{hash: "x"})
	s, err := p.Sample(context.Background(), hash)
	require.NoError(t, err)

	c, err := transform.NewCached(failing, client, transform.CacheConfig{Name: "failing"})
	require.NoError(t, err)
	_, err = c.Apply(context.Background(), p, s)
	assert.ErrorIs(t, err, errBroken)
	assert.Empty(t, mr.Keys(), "failures are not cached")

	inner, calls := counter()
	c, err = transform.NewCached(inner, client, transform.CacheConfig{Name: "count"})
	require.NoError(t, err)

	mr.SetError("server down")
	_, err = c.Apply(context.Background(), p, s)
	assert.ErrorContains(t, err, "cache get count:bodmas:"+hash)
	assert.Equal(t, int64(0), calls.Load())
}
