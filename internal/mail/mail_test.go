package mail

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestComposer(t *testing.T) {
	c := Composer{AppName: "POSTO", ClientURL: "https://admin.example.com/"}

	m, err := c.Verification("a@example.com", "Ann", "tok en", "48 hours")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", m.To)
	assert.Equal(t, "Verify your email", m.Subject)
	assert.Contains(t, m.Text, "https://admin.example.com/verify-email?token=tok+en")
	assert.Contains(t, m.Text, "48 hours")

	m, err = c.PasswordReset("a@example.com", "<b>Ann</b>", "abc", "1 hour")
	require.NoError(t, err)
	assert.Contains(t, m.Text, "/reset-password?token=abc")
	// html 模板会转义用户名
	assert.NotContains(t, m.HTML, "<b>Ann</b>")
	assert.Contains(t, m.HTML, "&lt;b&gt;Ann&lt;/b&gt;")
}

func TestEncodeEnvelope(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b, err := EncodeEnvelope("POSTO <no-reply@posto.local>", Message{To: "a@example.com", Subject: "s", Text: "t"}, at)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, "POSTO <no-reply@posto.local>", env.From)
	assert.Equal(t, "a@example.com", env.To)
	assert.True(t, at.Equal(env.QueuedAt))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{Log: zap.NewNop()}.Send(context.Background(), Message{To: "x"}))
}
