// Package twilio wraps the twilio REST client for the sms & phone_call
// notification channels.
package twilio

import (
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/vitalguard/vitalguard/server/logger"
	"github.com/vitalguard/vitalguard/shared"
)

var logg = logger.NewLogger()

type ClientWrapper struct {
	client *twilio.RestClient
	config shared.TwilioConfig
	dryRun bool
}

// NewClient returns a twilio wrapper. With dryRun set(tests, dev mode or
// missing credentials) sends are logged instead of hitting the API.
func NewClient(config shared.TwilioConfig, dryRun bool) *ClientWrapper {
	if config.AccountSid == "" || config.AuthToken == "" {
		dryRun = true
	}

	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{client: client, config: config, dryRun: dryRun}
}

// SendMessage sends an SMS to the given number.
func (cw *ClientWrapper) SendMessage(to, msg string) error {
	if cw.dryRun {
		logg.Infof("[twilio dry-run] SMS to %v: %v", to, msg)
		return nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return err
	}

	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return fmt.Errorf("twilio message to %v failed: %v", to, *resp.ErrorMessage)
	}

	return nil
}

// MakeCall places a voice call that reads the message out.
func (cw *ClientWrapper) MakeCall(to, msg string) error {
	if cw.dryRun {
		logg.Infof("[twilio dry-run] call to %v: %v", to, msg)
		return nil
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(cw.config.FromNumber)
	params.SetTwiml(fmt.Sprintf("<Response><Say>%v</Say></Response>", msg))

	_, err := cw.client.ApiV2010.CreateCall(params)
	return err
}
