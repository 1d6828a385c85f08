package sms

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Client sends SMS through the Twilio REST API.
type Client struct {
	rest       *twilio.RestClient
	fromNumber string
}

// New builds a client. httpClient may be nil for the default transport.
func New(accountSID, authToken, fromNumber string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base := &twclient.Client{
		Credentials: twclient.NewCredentials(accountSID, authToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(accountSID)
	return &Client{
		rest:       twilio.NewRestClientWithParams(twilio.ClientParams{Client: base}),
		fromNumber: fromNumber,
	}
}

// Send delivers body to toNumber and returns the Twilio message SID.
func (c *Client) Send(toNumber, body string) (string, error) {
	if !strings.HasPrefix(toNumber, "+") {
		return "", fmt.Errorf("invalid phone number: %s", toNumber)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	resp, err := c.rest.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
