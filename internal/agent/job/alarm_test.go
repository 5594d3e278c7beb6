package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/internal/storage/kv"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestAlarm_FiresOnce(t *testing.T) {
	ctx := context.Background()
	var fired int32
	a := NewAlarm(kv.NewMemoryStore(), func() { atomic.AddInt32(&fired, 1) })
	defer a.Stop()

	require.NoError(t, a.Set(ctx, time.Now().Add(20*time.Millisecond)))
	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestAlarm_ResetOverwrites(t *testing.T) {
	ctx := context.Background()
	var fired int32
	store := kv.NewMemoryStore()
	a := NewAlarm(store, func() { atomic.AddInt32(&fired, 1) })
	defer a.Stop()

	require.NoError(t, a.Set(ctx, time.Now().Add(30*time.Millisecond)))
	later := time.Now().Add(time.Hour)
	require.NoError(t, a.Set(ctx, later))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired), "earlier arm was overwritten")
	at, ok := a.Next()
	require.True(t, ok)
	assert.True(t, at.Equal(later))

	persisted, ok, err := store.GetAlarm(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, later.UnixMilli(), persisted.UnixMilli())
}

func TestAlarm_Clear(t *testing.T) {
	ctx := context.Background()
	var fired int32
	store := kv.NewMemoryStore()
	a := NewAlarm(store, func() { atomic.AddInt32(&fired, 1) })
	require.NoError(t, a.Set(ctx, time.Now().Add(20*time.Millisecond)))
	require.NoError(t, a.Clear(ctx))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	_, ok, _ := store.GetAlarm(ctx)
	assert.False(t, ok)
	_, armed := a.Next()
	assert.False(t, armed)
}

func TestAlarm_RestoreOverdueFiresImmediately(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.SetAlarm(ctx, time.Now().Add(-time.Minute)))

	var fired int32
	a := NewAlarm(store, func() { atomic.AddInt32(&fired, 1) })
	defer a.Stop()
	ok, err := a.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })
}

func TestAlarm_StopKeepsPersistedSlot(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	var fired int32
	a := NewAlarm(store, func() { atomic.AddInt32(&fired, 1) })
	require.NoError(t, a.Set(ctx, time.Now().Add(20*time.Millisecond)))
	a.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	_, ok, _ := store.GetAlarm(ctx)
	assert.True(t, ok)
}
