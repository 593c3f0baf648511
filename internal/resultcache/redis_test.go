package resultcache

import (
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmodel/dealmodel/pkg/fieldpath"
	"github.com/dealmodel/dealmodel/pkg/scenario"
)

func newTestCache(t *testing.T, modelID string, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, modelID, ttl), mr
}

func TestCachePutGet(t *testing.T) {
	c, mr := newTestCache(t, "atlas", 0)

	_, ok := c.Get("base")
	assert.False(t, ok)

	c.Put("base", fieldpath.Outputs{
		"irr":     0.24,
		"returns": map[string]any{"moic": 2.5},
		"debt":    []float64{100, 80, 60},
	})
	assert.True(t, mr.Exists("dealmodel:results:atlas:base"))

	out, ok := c.Get("base")
	require.True(t, ok)
	irr, ok := out.Lookup("irr")
	assert.True(t, ok)
	assert.InDelta(t, 0.24, irr, 1e-12)
	moic, ok := out.Lookup("returns.moic")
	assert.True(t, ok)
	assert.InDelta(t, 2.5, moic, 1e-12)
	debt, ok := fieldpath.ToFloatSlice(out["debt"])
	assert.True(t, ok)
	assert.Equal(t, []float64{100, 80, 60}, debt)
}

func TestCacheTTL(t *testing.T) {
	c, mr := newTestCache(t, "atlas", time.Minute)

	c.Put("s1", fieldpath.Outputs{"irr": 0.2})
	assert.Equal(t, time.Minute, mr.TTL("dealmodel:results:atlas:s1"))

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get("s1")
	assert.False(t, ok)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c, mr := newTestCache(t, "atlas", 0)
	other := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "zeus", 0)

	for _, id := range []string{"base", "s1", "s2"} {
		c.Put(id, fieldpath.Outputs{"irr": 0.1})
	}
	other.Put("base", fieldpath.Outputs{"irr": 0.3})

	c.Delete("s1")
	_, ok := c.Get("s1")
	assert.False(t, ok)
	_, ok = c.Get("s2")
	assert.True(t, ok)

	c.Clear()
	for _, id := range []string{"base", "s2"} {
		_, ok := c.Get(id)
		assert.False(t, ok, id)
	}
	_, ok = other.Get("base")
	assert.True(t, ok, "clear is scoped to one model")
}

func TestCacheSkipsNaN(t *testing.T) {
	c, mr := newTestCache(t, "atlas", 0)
	c.Put("bad", fieldpath.Outputs{"irr": math.NaN()})
	assert.False(t, mr.Exists("dealmodel:results:atlas:bad"))
}

func TestCacheUnavailableIsMiss(t *testing.T) {
	c, mr := newTestCache(t, "atlas", 0)
	c.Put("base", fieldpath.Outputs{"irr": 0.1})
	mr.Close()

	_, ok := c.Get("base")
	assert.False(t, ok)
	c.Delete("base")
	c.Clear()
}

type deal struct {
	Rate float64
}

func TestCacheBacksManager(t *testing.T) {
	c, _ := newTestCache(t, "atlas", 0)
	reg := fieldpath.NewRegistry[deal]().Float64("rate", func(d *deal) *float64 { return &d.Rate })
	m, err := scenario.NewManager(deal{Rate: 0.06}, reg, scenario.WithResultCache[deal](c))
	require.NoError(t, err)

	calls := 0
	calc := func(d deal) (fieldpath.Outputs, error) {
		calls++
		return fieldpath.Outputs{"interest": d.Rate * 100}, nil
	}

	_, err = m.Calculate(scenario.BaseScenarioID, calc)
	require.NoError(t, err)
	out, err := m.Calculate(scenario.BaseScenarioID, calc)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	v, _ := out.Lookup("interest")
	assert.InDelta(t, 6.0, v, 1e-9)
}
