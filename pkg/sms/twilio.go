package sms

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioProvider struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioProvider(accountSID, authToken, fromNumber string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioProvider{
		client:     client,
		fromNumber: fromNumber,
	}
}

func (t *TwilioProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &api.CreateMessageParams{}
	params.SetTo(request.To)
	params.SetFrom(t.getFromNumber(request.From))
	params.SetBody(request.Message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return &SMSResponse{
			Status: "failed",
			Error:  err.Error(),
		}, err
	}

	out := &SMSResponse{Status: "queued"}
	if resp.Sid != nil {
		out.MessageID = *resp.Sid
	}
	if resp.Status != nil {
		out.Status = string(*resp.Status)
	}
	return out, nil
}

// PlaceCall dials the number and reads request.Message with inline TwiML.
func (t *TwilioProvider) PlaceCall(ctx context.Context, request *CallRequest) (*CallResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	twiml, err := sayTwiML(request.Message)
	if err != nil {
		return nil, err
	}

	params := &api.CreateCallParams{}
	params.SetTo(request.To)
	params.SetFrom(t.getFromNumber(request.From))
	params.SetTwiml(twiml)

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		return &CallResponse{
			Status: "failed",
			Error:  err.Error(),
		}, fmt.Errorf("failed to create call: %w", err)
	}

	out := &CallResponse{Status: "queued"}
	if resp.Sid != nil {
		out.CallID = *resp.Sid
	}
	if resp.Status != nil {
		out.Status = string(*resp.Status)
	}
	return out, nil
}

func (t *TwilioProvider) getFromNumber(from string) string {
	if from != "" {
		return from
	}
	return t.fromNumber
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Say     struct {
		Loop int    `xml:"loop,attr"`
		Text string `xml:",chardata"`
	} `xml:"Say"`
}

func sayTwiML(message string) (string, error) {
	var doc twimlResponse
	doc.Say.Loop = 2
	doc.Say.Text = message

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to build twiml: %w", err)
	}
	return xml.Header + string(out), nil
}
