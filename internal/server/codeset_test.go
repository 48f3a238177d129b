package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCodeSet(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := newCodeSet(time.Minute, 3)
	s.now = func() time.Time { return now }

	s.add("AAAAAA")
	assert.True(t, s.has("AAAAAA"))
	assert.False(t, s.has("BBBBBB"))

	t.Run("expires", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.False(t, s.has("AAAAAA"))
		assert.Zero(t, s.len())
	})

	t.Run("bounded", func(t *testing.T) {
		for _, code := range []string{"CODE01", "CODE02", "CODE03"} {
			s.add(code)
			now = now.Add(time.Second)
		}
		s.add("CODE04")

		assert.Equal(t, 3, s.len())
		assert.False(t, s.has("CODE01"), "oldest entry should be dropped")
		assert.True(t, s.has("CODE04"))
	})

	t.Run("full of expired entries", func(t *testing.T) {
		now = now.Add(time.Hour)
		s.add("CODE05")
		assert.Equal(t, 1, s.len())
	})

	t.Run("remove", func(t *testing.T) {
		s.remove("CODE05")
		assert.False(t, s.has("CODE05"))
	})
}
