package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/natebag/Testsite-sub005/internal/domain/privacy"
	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, m...)
	return nil
}

func testNotifier(resolve func(context.Context, []string) []string) (*BreachNotifier, *captureSender) {
	cfg := &sharedConfig.EmailConfig{
		SMTPHost:    "localhost",
		SMTPPort:    25,
		FromAddress: "privacy@example.com",
		FromName:    "Privacy Team",
	}
	n := NewBreachNotifier(cfg, "dpo@regulator.example", resolve, logger.NewLogger())
	capture := &captureSender{}
	n.dialer = capture
	return n, capture
}

func testRecord() *privacy.BreachRecord {
	now := time.Now()
	return &privacy.BreachRecord{
		ID:                "b1",
		Kind:              privacy.BreachExfiltration,
		Severity:          privacy.SeverityCritical,
		Description:       "bulk read above exfiltration threshold",
		AffectedSubjects:  []string{"u1", "u2"},
		DetectedAt:        now,
		RegulatorDeadline: now.Add(72 * time.Hour),
		UserDeadline:      now.Add(96 * time.Hour),
	}
}

func TestNotifyRegulator(t *testing.T) {
	n, capture := testNotifier(nil)

	require.NoError(t, n.NotifyRegulator(context.Background(), testRecord()))
	require.Len(t, capture.messages, 1)
	assert.Equal(t, []string{"dpo@regulator.example"}, capture.messages[0].GetHeader("To"))
	assert.Contains(t, capture.messages[0].GetHeader("Subject")[0], "CRITICAL")
}

func TestNotifyUsers_OneMessagePerRecipient(t *testing.T) {
	n, capture := testNotifier(func(_ context.Context, ids []string) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, id+"@example.com")
		}
		return out
	})

	require.NoError(t, n.NotifyUsers(context.Background(), testRecord()))
	assert.Len(t, capture.messages, 2)
}

func TestNotifyUsers_NoAddressesIsNotAnError(t *testing.T) {
	n, capture := testNotifier(func(context.Context, []string) []string { return nil })

	require.NoError(t, n.NotifyUsers(context.Background(), testRecord()))
	assert.Empty(t, capture.messages)
}

func TestNotifyRegulator_DeliveryFailure(t *testing.T) {
	n, capture := testNotifier(nil)
	capture.err = assert.AnError

	require.Error(t, n.NotifyRegulator(context.Background(), testRecord()))
}
