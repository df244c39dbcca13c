package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsehq/insight-engine/internal/config"
	"github.com/pulsehq/insight-engine/internal/database/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(testLogger())
	registry.Register(NewMailChannel(config.SMTPConfig{Host: "localhost"}, testLogger()))

	channel, err := registry.Get(models.ChannelMail)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelMail, channel.Type())

	_, err = registry.Get(models.ChannelChat)
	assert.Error(t, err)
}

func TestMailChannel_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string

	channel := NewMailChannel(config.SMTPConfig{
		Host: "mail.example.com",
		Port: 587,
		From: "reports@example.com",
	}, testLogger())
	channel.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err := channel.Send(context.Background(), "ops@example.com", "Weekly Summary", "All numbers nominal.")
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "reports@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Weekly Summary\r\n")
	assert.Contains(t, gotMsg, "To: ops@example.com\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "All numbers nominal."))
}

func TestMailChannel_NotConfigured(t *testing.T) {
	channel := NewMailChannel(config.SMTPConfig{}, testLogger())
	err := channel.Send(context.Background(), "ops@example.com", "s", "b")
	assert.Error(t, err)
}

func TestMailChannel_CancelledContext(t *testing.T) {
	channel := NewMailChannel(config.SMTPConfig{Host: "mail.example.com"}, testLogger())
	channel.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatal("send must not be called with a cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := channel.Send(ctx, "ops@example.com", "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatChannel_Send(t *testing.T) {
	var got slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel := NewChatChannel(config.SlackConfig{
		WebhookURL: server.URL,
		Channel:    "#default",
	}, testLogger())

	require.NoError(t, channel.Send(context.Background(), "#ops", "Alert: Error Spike", "error_rate is high"))

	assert.Equal(t, "#ops", got.Channel, "explicit target overrides the default channel")
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "Alert: Error Spike", got.Attachments[0].Title)
	assert.Equal(t, "error_rate is high", got.Attachments[0].Text)

	require.NoError(t, channel.Send(context.Background(), "", "s", "b"))
	assert.Equal(t, "#default", got.Channel)
}

func TestChatChannel_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer server.Close()

	channel := NewChatChannel(config.SlackConfig{WebhookURL: server.URL}, testLogger())
	err := channel.Send(context.Background(), "#ops", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "invalid_payload")
}

func TestWebhookChannel_SignsBody(t *testing.T) {
	secret := "shared-secret"
	var gotSignature string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	channel := NewWebhookChannel(config.WebhookConfig{Secret: secret}, testLogger())
	require.NoError(t, channel.Send(context.Background(), server.URL, "Report Ready", "details"))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "Report Ready", payload.Subject)
	assert.Equal(t, "insight-engine", payload.Source)
}

func TestWebhookChannel_NoSecretNoSignature(t *testing.T) {
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel := NewWebhookChannel(config.WebhookConfig{}, testLogger())
	require.NoError(t, channel.Send(context.Background(), server.URL, "s", "b"))
	assert.Empty(t, gotSignature)
}

func TestWebhookChannel_EmptyTarget(t *testing.T) {
	channel := NewWebhookChannel(config.WebhookConfig{}, testLogger())
	assert.Error(t, channel.Send(context.Background(), "", "s", "b"))
}

func TestGatewayChannel_Send(t *testing.T) {
	var gotAuth string
	var got gatewayPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel := NewSMSChannel(config.GatewayConfig{URL: server.URL, Token: "tok"}, testLogger())
	assert.Equal(t, models.ChannelSMS, channel.Type())

	require.NoError(t, channel.Send(context.Background(), "+15551234567", "Alert", "threshold crossed"))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "+15551234567", got.To)
	assert.Equal(t, "threshold crossed", got.Message)
}

func TestGatewayChannel_TypeTags(t *testing.T) {
	cfg := config.GatewayConfig{URL: "http://gateway.local"}
	assert.Equal(t, models.ChannelSMS, NewSMSChannel(cfg, testLogger()).Type())
	assert.Equal(t, models.ChannelPush, NewPushChannel(cfg, testLogger()).Type())
}
