package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerTicksConcurrently(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Analyzing", 50)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Tick()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), tr.Current())
	tr.FinishSuccess()
}

func TestTrackerFinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "Analyzing", 2)
	tr.Tick()
	tr.FinishError(errors.New("boom"))

	assert.Contains(t, buf.String(), "Analyzing error: boom")
}

func TestDisabledTrackerIsNoop(t *testing.T) {
	for _, tr := range []*Tracker{nil, Disabled()} {
		tr.Tick()
		tr.FinishSuccess()
		tr.FinishError(errors.New("ignored"))
		assert.Zero(t, tr.Current())
	}
}

func TestSpinnerFinishError(t *testing.T) {
	var buf bytes.Buffer
	sp := NewSpinner(&buf, "Scanning trees...")
	sp.FinishError(errors.New("no such tree"))

	assert.Contains(t, buf.String(), "Scanning trees... error: no such tree")
}
