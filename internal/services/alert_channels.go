package services

import (
	"context"
	"errors"
	"time"

	"safeher/internal/models"
	"safeher/internal/utils"
	"safeher/pkg/sms"

	"github.com/google/uuid"
)

const (
	ChannelSimulated = "simulated"
	ChannelSMS       = "sms"
	ChannelCall      = "call"
)

// Alert is what a channel delivers to one recipient.
type Alert struct {
	Event     models.EmergencyEvent
	Recipient models.Contact
	Message   string
}

// AlertChannel delivers an alert and returns the provider's message id.
type AlertChannel interface {
	Name() string
	Send(ctx context.Context, alert Alert) (string, error)
}

// SimulatedChannel stands in for a network call: it waits Delay and always succeeds.
type SimulatedChannel struct {
	Delay time.Duration
	// After defaults to time.After.
	After func(time.Duration) <-chan time.Time
}

func NewSimulatedChannel(delay time.Duration) *SimulatedChannel {
	return &SimulatedChannel{Delay: delay, After: time.After}
}

func (c *SimulatedChannel) Name() string {
	return ChannelSimulated
}

func (c *SimulatedChannel) Send(ctx context.Context, _ Alert) (string, error) {
	if c.Delay > 0 {
		after := c.After
		if after == nil {
			after = time.After
		}
		select {
		case <-after(c.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "sim-" + uuid.New().String(), nil
}

type SMSChannel struct {
	provider sms.SMSProvider
	from     string
}

func NewSMSChannel(provider sms.SMSProvider, from string) *SMSChannel {
	return &SMSChannel{provider: provider, from: from}
}

func (c *SMSChannel) Name() string {
	return ChannelSMS
}

func (c *SMSChannel) Send(ctx context.Context, alert Alert) (string, error) {
	resp, err := c.provider.SendSMS(ctx, &sms.SMSRequest{
		To:      utils.NormalizePhone(alert.Recipient.Phone),
		From:    c.from,
		Message: alert.Message,
		Type:    "transactional",
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("sms provider returned no response")
	}
	if resp.Status == "failed" {
		return resp.MessageID, errors.New(resp.Error)
	}
	return resp.MessageID, nil
}

// CallChannel places a voice call that reads the alert aloud.
type CallChannel struct {
	caller sms.VoiceCaller
	from   string
}

func NewCallChannel(caller sms.VoiceCaller, from string) *CallChannel {
	return &CallChannel{caller: caller, from: from}
}

func (c *CallChannel) Name() string {
	return ChannelCall
}

func (c *CallChannel) Send(ctx context.Context, alert Alert) (string, error) {
	resp, err := c.caller.PlaceCall(ctx, &sms.CallRequest{
		To:      utils.NormalizePhone(alert.Recipient.Phone),
		From:    c.from,
		Message: alert.Message,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("voice provider returned no response")
	}
	return resp.CallID, nil
}
