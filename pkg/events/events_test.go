package events_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exeforge/exeforge/pkg/events"
)

func drain(ch <-chan events.Event, n int) []events.Event {
	out := make([]events.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, <-ch)
	}
	return out
}

func TestChannelSink_ForwardsTypedEvents(t *testing.T) {
	sink := events.NewChannelSink(16)

	sink.Status("j1", "hello")
	sink.Progress("j1", 30)
	sink.Finished("j1", "/out/app.exe", 12)
	sink.Failed("j2", "boom")
	sink.Cancelled("j3", "stopped")
	sink.BatchDone()

	got := drain(sink.Events(), 6)

	require.Len(t, got, 6)
	assert.Equal(t, events.TypeStatus, got[0].Type)
	assert.Equal(t, "hello", got[0].Message)
	assert.Equal(t, events.TypeProgress, got[1].Type)
	assert.Equal(t, 30, got[1].Percent)
	assert.Equal(t, events.TypeFinished, got[2].Type)
	assert.Equal(t, "/out/app.exe", got[2].ArtifactPath)
	assert.Equal(t, int64(12), got[2].SizeMB)
	assert.Equal(t, events.TypeFailed, got[3].Type)
	assert.Equal(t, events.TypeCancelled, got[4].Type)
	assert.Equal(t, events.TypeBatchDone, got[5].Type)

	// Sequence numbers increase monotonically.
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
	}
}

func TestChannelSink_DropsInsteadOfBlocking(t *testing.T) {
	sink := events.NewChannelSink(1)

	sink.Status("j1", "first")
	sink.Status("j1", "second") // buffer full, must not block

	assert.Equal(t, int64(1), sink.Dropped())

	e := <-sink.Events()
	assert.Equal(t, "first", e.Message)
}

func TestChannelSink_ConcurrentSends(t *testing.T) {
	sink := events.NewChannelSink(1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sink.Status("job", "line")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), sink.Dropped())
	assert.Len(t, sink.Events(), 400)
}

type countingSink struct {
	events.NopSink
	mu       sync.Mutex
	statuses int
	batch    int
}

func (c *countingSink) Status(jobID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses++
}

func (c *countingSink) BatchDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch++
}

func TestMultiSink_FansOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{}
	multi := events.NewMultiSink(a)
	multi.Add(b)

	multi.Status("j1", "one")
	multi.Status("j1", "two")
	multi.BatchDone()

	assert.Equal(t, 2, a.statuses)
	assert.Equal(t, 2, b.statuses)
	assert.Equal(t, 1, a.batch)
	assert.Equal(t, 1, b.batch)
}
