package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetFromCache(t *testing.T) {
	c := NewCache(time.Minute, time.Minute)
	c.Set("members", []string{"a", "b"}, time.Minute)
	c.Set("count", 3, time.Minute)

	members, ok := GetFromCache[[]string](c, "members")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, members)

	_, ok = GetFromCache[[]string](c, "count")
	assert.False(t, ok, "wrong type must miss")

	c.Delete("members")
	_, ok = GetFromCache[[]string](c, "members")
	assert.False(t, ok)
}
