// Package prefgate decides whether a candidate alert reaches the user at
// all, and through which channels, based on stored notification preferences.
package prefgate

import (
	"time"

	"github.com/vitalguard/vitalguard/server/classifier"
	"github.com/vitalguard/vitalguard/server/logger"
	"github.com/vitalguard/vitalguard/server/models"
)

var logg = logger.NewLogger()

// Decision is the gate's verdict for one candidate alert.
type Decision struct {
	Send     bool     `json:"send"`
	Channels []string `json:"channels"`
}

// PreferenceLoader fetches a user's stored preferences.
type PreferenceLoader func(userID string) (*models.AlertPreference, error)

type Gate struct {
	loadPreference PreferenceLoader
	location       *time.Location
	now            func() time.Time
}

// NewGate returns a gate evaluating quiet hours in the given zone and
// loading preferences from the models store.
func NewGate(location *time.Location) *Gate {
	return &Gate{
		loadPreference: models.FindAlertPreference,
		location:       location,
		now:            time.Now,
	}
}

// NewGateWithLoader is NewGate with an injected loader & clock - used by
// tests and anywhere preferences come from elsewhere.
func NewGateWithLoader(location *time.Location, loader PreferenceLoader, now func() time.Time) *Gate {
	return &Gate{loadPreference: loader, location: location, now: now}
}

// Decide applies, in order: the alert-type toggle, quiet hours(severities
// below critical are suppressed unless emergency_override is on), then
// channel selection in fixed priority order.
//
// A missing preference record or a store read failure degrades to the
// fail-open default - send via push - rather than dropping a potential
// emergency. That is deliberate policy, not an omission.
func (gate *Gate) Decide(userID, alertType, severity string) Decision {
	prefs, err := gate.loadPreference(userID)
	if err != nil {
		logg.Warnf("falling back to default alert decision for user %v: %v", userID, err)
		return defaultDecision()
	}

	if !prefs.AlertTypeEnabled(alertType) {
		return Decision{Send: false}
	}

	if gate.inQuietHours(prefs) && !classifier.AtLeastCritical(severity) && !prefs.EmergencyOverride {
		return Decision{Send: false}
	}

	channels := prefs.EnabledChannels()
	if len(channels) == 0 {
		channels = []string{models.PUSH_CHANNEL}
	}

	return Decision{Send: true, Channels: channels}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func defaultDecision() Decision {
	return Decision{Send: true, Channels: []string{models.PUSH_CHANNEL}}
}

func (gate *Gate) inQuietHours(prefs *models.AlertPreference) bool {
	window := QuietHoursWindow{
		Enabled: prefs.QuietHoursEnabled,
		Start:   prefs.QuietHoursStart,
		End:     prefs.QuietHoursEnd,
	}

	return InQuietHours(window, gate.now().In(gate.location))
}
