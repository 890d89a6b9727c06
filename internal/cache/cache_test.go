package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontlook/stalker/internal/navigation"
	"github.com/dontlook/stalker/pkg/core"
)

func newEntry() *Pursuer {
	return &Pursuer{Navigator: navigation.NewAgent(core.Vec3{}, 1, 1)}
}

func TestPursuerCache_AddAndGet(t *testing.T) {
	c := NewPursuerCache()
	e := newEntry()

	require.NoError(t, c.Add("stalker", e))

	got, ok := c.Get("stalker")
	require.True(t, ok)
	assert.Same(t, e, got)
	assert.Equal(t, 1, c.Len())
}

func TestPursuerCache_GetMissing(t *testing.T) {
	c := NewPursuerCache()
	_, ok := c.Get("nobody")
	assert.False(t, ok)
}

func TestPursuerCache_Duplicate(t *testing.T) {
	c := NewPursuerCache()
	require.NoError(t, c.Add("stalker", newEntry()))

	err := c.Add("stalker", newEntry())
	assert.ErrorIs(t, err, ErrDuplicatePursuer)
	assert.Equal(t, 1, c.Len())
}

func TestPursuerCache_Order(t *testing.T) {
	c := NewPursuerCache()
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, c.Add(n, newEntry()))
	}

	assert.Equal(t, []string{"c", "a", "b"}, c.Names())

	var seen []string
	c.Each(func(name string, _ *Pursuer) { seen = append(seen, name) })
	assert.Equal(t, []string{"c", "a", "b"}, seen)
}

func TestPursuerCache_Reset(t *testing.T) {
	c := NewPursuerCache()
	require.NoError(t, c.Add("stalker", newEntry()))

	c.Reset()

	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Names())
	require.NoError(t, c.Add("stalker", newEntry()))
}

func TestPursuerCache_Concurrent(t *testing.T) {
	c := NewPursuerCache()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Add(string(rune('A'+i%26))+string(rune('a'+i/26)), newEntry())
			c.Names()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, c.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, c.Value())

	c.Set(7)
	assert.Equal(t, 7, c.Value())
}
