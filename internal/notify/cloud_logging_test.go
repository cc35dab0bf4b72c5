package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/journai/journai-ops/internal/command/commandtest"
)

func TestCloudLoggingNotifier(t *testing.T) {
	rec := commandtest.New()
	notifier := NewCloudLoggingNotifier(zerolog.Nop(), rec, "journai-prod", "journai-health-alerts")

	require.NoError(t, notifier.Notify(context.Background(), makeEvent("application")))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	args := calls[0].Command.Args
	assert.Equal(t, []string{"logging", "write", "journai-health-alerts"}, args[:3])
	assert.Contains(t, args, "--payload-type=json")
	assert.Contains(t, args, "--severity=CRITICAL")
	assert.Contains(t, args, "--project=journai-prod")

	var payload AlertEvent
	require.NoError(t, json.Unmarshal([]byte(args[3]), &payload))
	assert.Equal(t, "application", payload.Target)
}

func TestCloudLoggingNotifierFailure(t *testing.T) {
	rec := commandtest.New().On("gcloud logging write", commandtest.Fail("PERMISSION_DENIED"))
	notifier := NewCloudLoggingNotifier(zerolog.Nop(), rec, "journai-prod", "alerts")

	event := makeEvent("storage")
	event.Severity = SeverityWarning
	err := notifier.Notify(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, rec.Calls()[0].Command.Args, "--severity=WARNING")
}
