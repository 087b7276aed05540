package log

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpinner_DrawsAndClears(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, SpinnerLine, "Fetching quotes")

	s.Start()
	s.Start() // no-op while running
	time.Sleep(250 * time.Millisecond)
	s.Stop("done")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r- Fetching quotes (0s)"))
	assert.Contains(t, out, "\\ Fetching quotes")
	assert.True(t, strings.HasSuffix(out, "\r\033[Kdone\n"))
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, SpinnerDots, "idle")

	s.Stop("ignored")
	assert.Empty(t, buf.String())
}

func TestSpinner_Restart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, SpinnerDots, "again")

	s.Start()
	s.Stop("")
	s.Start()
	s.Stop("")

	assert.Equal(t, 2, strings.Count(buf.String(), "\r\033[K"))
}
