package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2025, 10, 21, 9, 0, 0, 0, time.UTC)
	c := NewFake(start)

	assert.Equal(t, start, c.Now())

	c.AdvanceDays(10)
	assert.Equal(t, start.Add(240*time.Hour), c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, start.Add(241*time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSystemIsNearWallClock(t *testing.T) {
	var c Clock = System{}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
