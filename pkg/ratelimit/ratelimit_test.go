package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 令牌耗尽后拒绝，容量内全部放行
func TestAllowExhaustion(t *testing.T) {
	tb := NewTokenBucket(3, 1, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow())
	}
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.Remaining())
}

// 随时间补充令牌且不超过容量
func TestRefill(t *testing.T) {
	tb := NewTokenBucket(2, 100, time.Second)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, 2, tb.Remaining())
	assert.True(t, tb.Allow())
}

// 并发 Allow 放行数量不超过容量
func TestConcurrentAllow(t *testing.T) {
	tb := NewTokenBucket(10, 1, time.Minute)

	results := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func() {
			results <- tb.Allow()
		}()
	}

	allowed := 0
	for i := 0; i < 100; i++ {
		if <-results {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}
