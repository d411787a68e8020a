package sms

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("mid-1")}, nil
}

func TestSNSSendSMSSetsMessageAndAttributes(t *testing.T) {
	pub := &fakePublisher{}
	p := &AWSSNSProvider{client: pub, senderID: "SafeHer"}

	resp, err := p.SendSMS(context.Background(), &SMSRequest{To: "+15550100", Message: "help"})
	require.NoError(t, err)
	assert.Equal(t, "mid-1", resp.MessageID)
	assert.Equal(t, "sent", resp.Status)

	require.Len(t, pub.inputs, 1)
	in := pub.inputs[0]
	assert.Equal(t, "help", aws.ToString(in.Message))
	assert.Equal(t, "+15550100", aws.ToString(in.PhoneNumber))
	assert.Equal(t, "Transactional", aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "SafeHer", aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
}

func TestSNSSendSMSReportsFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("throttled")}
	p := &AWSSNSProvider{client: pub}

	resp, err := p.SendSMS(context.Background(), &SMSRequest{To: "112", Message: "help"})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "throttled", resp.Error)
	assert.NotContains(t, pub.inputs[0].MessageAttributes, "AWS.SNS.SMS.SenderID")
}

func TestSayTwiMLEscapesMessage(t *testing.T) {
	out, err := sayTwiML("SOS <now> & here")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, "&lt;now&gt; &amp; here")
	assert.Contains(t, out, `<Say loop="2">`)
}
