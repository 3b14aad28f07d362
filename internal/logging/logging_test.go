package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventLoggerRendersComponentAndMessage(t *testing.T) {
	var buf bytes.Buffer
	log := NewEventLogger(&buf, false)
	log.Info().Str("component", "scheduler").Msg("dispatched")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "scheduler")
	assert.Contains(t, out, "dispatched")
}

func TestVirtualClockDrivesTimestampFromSuppliedNow(t *testing.T) {
	var buf bytes.Buffer
	log := NewEventLogger(&buf, false)

	VirtualClock(func() time.Duration { return 3661 * time.Second })
	log.Info().Str("component", "scheduler").Msg("tick")

	assert.Contains(t, buf.String(), "01:01:01")
}

func TestNewCLILoggerRaisesLevelWhenVerbose(t *testing.T) {
	quiet := NewCLILogger(false)
	loud := NewCLILogger(true)

	assert.NotEqual(t, quiet.GetLevel(), loud.GetLevel())
}
