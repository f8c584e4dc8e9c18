package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateAlertPreferenceDefaults(t *testing.T) {
	InitializeTestDb()

	prefs, err := GetOrCreateAlertPreference("user-1", "user-1@example.com")
	require.Nil(t, err)

	assert.True(t, prefs.PushEnabled)
	assert.True(t, prefs.SmsEnabled)
	assert.True(t, prefs.EmailEnabled)
	assert.False(t, prefs.PhoneCallEnabled)

	assert.False(t, prefs.QuietHoursEnabled)
	assert.Equal(t, "22:00", prefs.QuietHoursStart)
	assert.Equal(t, "07:00", prefs.QuietHoursEnd)
	assert.True(t, prefs.EmergencyOverride)

	assert.True(t, prefs.CriticalVitalsEnabled)
	assert.True(t, prefs.FallDetectionEnabled)
	assert.False(t, prefs.MedicationReminderEnabled)

	assert.True(t, prefs.EscalationEnabled)
	assert.Equal(t, 5, prefs.EscalationDelayMinutes)
	assert.Equal(t, 3, prefs.EscalationMaxAttempts)

	// Second call returns the same record, not a new one
	again, err := GetOrCreateAlertPreference("user-1", "user-1@example.com")
	require.Nil(t, err)
	assert.Equal(t, prefs.ID, again.ID)
}

func TestEnabledChannelsPriorityOrder(t *testing.T) {
	prefs := AlertPreference{
		PushEnabled:      true,
		SmsEnabled:       false,
		EmailEnabled:     true,
		PhoneCallEnabled: true,
	}

	assert.Equal(t, []string{PUSH_CHANNEL, EMAIL_CHANNEL, PHONE_CALL_CHANNEL}, prefs.EnabledChannels())
}

func TestReplaceAlertPreference(t *testing.T) {
	InitializeTestDb()

	_, err := GetOrCreateAlertPreference("user-1", "user-1@example.com")
	require.Nil(t, err)
	require.Nil(t, AddEmergencyContact("user-1", &EmergencyContact{Name: "Ama", Phone: "+15550001111"}))

	updated := AlertPreference{
		PushEnabled:       true,
		QuietHoursEnabled: true,
		QuietHoursStart:   "21:00",
		QuietHoursEnd:     "06:00",
		EmergencyOverride: true,
		EmergencyContacts: []EmergencyContact{
			{Name: "Kofi", Phone: "+15550002222", Priority: 1},
		},
	}
	require.Nil(t, ReplaceAlertPreference("user-1", &updated))

	prefs, err := FindAlertPreference("user-1")
	require.Nil(t, err)
	assert.True(t, prefs.QuietHoursEnabled)
	assert.Equal(t, "21:00", prefs.QuietHoursStart)
	assert.False(t, prefs.SmsEnabled, "replace is wholesale, not a merge")

	// The old contact list is replaced along with the record
	require.Len(t, prefs.EmergencyContacts, 1)
	assert.Equal(t, "Kofi", prefs.EmergencyContacts[0].Name)
}

func TestContactsInEscalationOrder(t *testing.T) {
	prefs := AlertPreference{
		EmergencyContacts: []EmergencyContact{
			{Name: "third", Priority: 2, Position: 1, Enabled: true},
			{Name: "skipped", Priority: 1, Position: 2, Enabled: false},
			{Name: "first", Priority: 1, Position: 3, Enabled: true},
			{Name: "second", Priority: 1, Position: 4, Enabled: true},
		},
	}

	ordered := prefs.ContactsInEscalationOrder()
	require.Len(t, ordered, 3)
	assert.Equal(t, "first", ordered[0].Name)
	assert.Equal(t, "second", ordered[1].Name)
	assert.Equal(t, "third", ordered[2].Name)
}
