package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueue_PopExpiredOrdersBySameTickFIFO(t *testing.T) {
	q := newTimerQueue()
	base := time.Now()

	registeredThird := q.schedule(base, timerSleep, &Task{id: 3}, nil)
	registeredFirst := q.schedule(base, timerSleep, &Task{id: 1}, nil)
	registeredSecond := q.schedule(base, timerSleep, &Task{id: 2}, nil)

	fired := q.popExpired(base)
	require.Len(t, fired, 3)
	assert.Equal(t, registeredThird.seq, fired[0].seq)
	assert.Equal(t, registeredFirst.seq, fired[1].seq)
	assert.Equal(t, registeredSecond.seq, fired[2].seq)
}

func TestTimerQueue_NextDeadlineSkipsCanceledHead(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()
	early := q.schedule(now, timerSleep, &Task{id: 1}, nil)
	later := q.schedule(now.Add(time.Hour), timerSleep, &Task{id: 2}, nil)

	q.cancel(early)

	deadline, ok := q.nextDeadline()
	require.True(t, ok)
	assert.True(t, deadline.Equal(later.deadline))
}

func TestTimerQueue_PopExpiredDropsCanceledEntriesSilently(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()
	live := q.schedule(now, timerSleep, &Task{id: 1}, nil)
	dead := q.schedule(now, timerSleep, &Task{id: 2}, nil)
	q.cancel(dead)

	fired := q.popExpired(now)
	require.Len(t, fired, 1)
	assert.Equal(t, live.seq, fired[0].seq)
}

func TestTimerQueue_PopExpiredLeavesFutureEntriesQueued(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()
	q.schedule(now.Add(time.Hour), timerSleep, &Task{id: 1}, nil)

	fired := q.popExpired(now)
	assert.Empty(t, fired)

	deadline, ok := q.nextDeadline()
	require.True(t, ok)
	assert.True(t, deadline.After(now))
}
