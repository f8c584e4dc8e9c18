// Package notifier delivers alert messages over the configured channels.
// Delivery is fire-and-forget from the engine's perspective: failures are
// logged(and surfaced to the caller for its own logging), never retried
// here - repeat contact happens through escalation.
package notifier

import (
	"fmt"

	"github.com/vitalguard/vitalguard/server/logger"
	"github.com/vitalguard/vitalguard/server/models"
)

var logg = logger.NewLogger()

// Notifier is the engine's one outbound dependency.
type Notifier interface {
	// Send delivers a message to the user over a single named channel.
	Send(userID, channel, message string) error
	// NotifyContact reaches one emergency contact directly(escalation path).
	NotifyContact(contact models.EmergencyContact, message string) error
}

// SmsSender is the piece of the twilio wrapper the notifier needs.
type SmsSender interface {
	SendMessage(to, msg string) error
	MakeCall(to, msg string) error
}

// ChannelNotifier routes sms/phone_call through twilio to the user's
// emergency contacts, and logs push/email sends as structured events(no
// push or email provider is wired up).
type ChannelNotifier struct {
	sms SmsSender
}

func NewChannelNotifier(sms SmsSender) *ChannelNotifier {
	return &ChannelNotifier{sms: sms}
}

func (cn *ChannelNotifier) Send(userID, channel, message string) error {
	switch channel {
	case models.PUSH_CHANNEL:
		logg.Infow("push notification sent", "user_id", userID, "message", message)
		return nil

	case models.EMAIL_CHANNEL:
		logg.Infow("email notification sent", "user_id", userID, "message", message)
		return nil

	case models.SMS_CHANNEL:
		return cn.eachContactPhone(userID, func(phone string) error {
			return cn.sms.SendMessage(phone, message)
		})

	case models.PHONE_CALL_CHANNEL:
		return cn.eachContactPhone(userID, func(phone string) error {
			return cn.sms.MakeCall(phone, message)
		})
	}

	return fmt.Errorf("unknown notification channel %q", channel)
}

func (cn *ChannelNotifier) NotifyContact(contact models.EmergencyContact, message string) error {
	logg.Infow("escalating to emergency contact",
		"contact", contact.Name, "relationship", contact.Relationship, "phone", contact.Phone)

	return cn.sms.SendMessage(contact.Phone, message)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// eachContactPhone fans a send out to every enabled emergency contact, in
// escalation order. Missing preferences or an empty contact list is not an
// error - there is simply no one to text.
func (cn *ChannelNotifier) eachContactPhone(userID string, send func(phone string) error) error {
	prefs, err := models.FindAlertPreference(userID)
	if err != nil {
		logg.Warnf("no emergency contacts reachable for user %v: %v", userID, err)
		return nil
	}

	var lastErr error
	for _, contact := range prefs.ContactsInEscalationOrder() {
		if err := send(contact.Phone); err != nil {
			logg.Errorf("failed to reach %v at %v: %v", contact.Name, contact.Phone, err)
			lastErr = err
		}
	}

	return lastErr
}
