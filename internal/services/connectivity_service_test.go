package services

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectivityService(t *testing.T) {
	t.Run("starts offline", func(t *testing.T) {
		conn := NewConnectivityService(ProberFunc(func(context.Context) bool { return true }), 0)
		assert.False(t, conn.IsOnline())
	})

	t.Run("check now reflects the probe result", func(t *testing.T) {
		var reachable atomic.Bool
		conn := NewConnectivityService(ProberFunc(func(context.Context) bool {
			return reachable.Load()
		}), 0)

		assert.False(t, conn.CheckNow(context.Background()))
		assert.False(t, conn.IsOnline())

		reachable.Store(true)
		assert.True(t, conn.CheckNow(context.Background()))
		assert.True(t, conn.IsOnline())
	})

	t.Run("callbacks fire only on transitions", func(t *testing.T) {
		conn := NewConnectivityService(ProberFunc(func(context.Context) bool { return true }), 0)

		var transitions []bool
		conn.OnChange(func(online bool) {
			transitions = append(transitions, online)
		})

		conn.SetOnline(false) // already offline, no-op
		conn.SetOnline(true)
		conn.SetOnline(true) // repeated state, no-op
		conn.SetOnline(false)

		assert.Equal(t, []bool{true, false}, transitions)
	})

	t.Run("all registered callbacks see a transition", func(t *testing.T) {
		conn := NewConnectivityService(ProberFunc(func(context.Context) bool { return true }), 0)

		var a, b atomic.Int32
		conn.OnChange(func(bool) { a.Add(1) })
		conn.OnChange(func(bool) { b.Add(1) })

		conn.SetOnline(true)

		assert.Equal(t, int32(1), a.Load())
		assert.Equal(t, int32(1), b.Load())
	})
}
