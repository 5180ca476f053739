package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanSearchQuery(t *testing.T) {
	cases := []struct {
		in, query, year string
	}{
		{"Inception", "Inception", ""},
		{"Inception.2010.1080p.BluRay", "Inception 2010", ""},
		{"【高清】盗梦空间 (2010)", "盗梦空间", "2010"},
		{"  The_Matrix [4K]  ", "The Matrix", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			q, y := CleanSearchQuery(tc.in)
			assert.Equal(t, tc.query, q)
			assert.Equal(t, tc.year, y)
		})
	}
}

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "超出容量的最旧条目被淘汰")
	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	expired := NewTTLCache[string](10, -time.Second)
	expired.Set("k", "v")
	_, ok = expired.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, expired.Len())
}

func TestResponseCache(t *testing.T) {
	c := NewResponseCache(time.Minute, time.Minute)
	c.Set("k", "v")
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}
