package models

import (
	"sync"

	"gorm.io/gorm"
)

const (
	PUSH_CHANNEL       = "push_notifications"
	SMS_CHANNEL        = "sms"
	EMAIL_CHANNEL      = "email"
	PHONE_CALL_CHANNEL = "phone_call"
)

const (
	CRITICAL_VITALS_ALERT_TYPE      = "critical_vitals"
	FALL_DETECTION_ALERT_TYPE       = "fall_detection"
	DEVICE_DISCONNECTION_ALERT_TYPE = "device_disconnection"
	LOW_BATTERY_ALERT_TYPE          = "low_battery"
	MEDICATION_REMINDER_ALERT_TYPE  = "medication_reminder"
)

// ChannelPriorityOrder is the fixed order channels are attempted in.
var ChannelPriorityOrder = []string{PUSH_CHANNEL, SMS_CHANNEL, EMAIL_CHANNEL, PHONE_CALL_CHANNEL}

var AlertTypeNameMap = map[string]bool{
	CRITICAL_VITALS_ALERT_TYPE:      true,
	FALL_DETECTION_ALERT_TYPE:       true,
	DEVICE_DISCONNECTION_ALERT_TYPE: true,
	LOW_BATTERY_ALERT_TYPE:          true,
	MEDICATION_REMINDER_ALERT_TYPE:  true,
}

// prefMutexes serializes writes to a single user's preference record, so a
// wholesale replace and a contact edit can't interleave.
var prefMutexes sync.Map

type AlertPreference struct {
	BaseModel
	UserID    string `json:"user_id" gorm:"not null;unique;index"`
	UserEmail string `json:"user_email"`

	PushEnabled      bool `json:"push_notifications" gorm:"default:true"`
	SmsEnabled       bool `json:"sms" gorm:"default:true"`
	EmailEnabled     bool `json:"email" gorm:"default:true"`
	PhoneCallEnabled bool `json:"phone_call"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   string `json:"quiet_hours_start" gorm:"default:'22:00'" validate:"time_stamp"`
	QuietHoursEnd     string `json:"quiet_hours_end" gorm:"default:'07:00'" validate:"time_stamp"`
	EmergencyOverride bool   `json:"emergency_override" gorm:"default:true"`

	CriticalVitalsEnabled      bool `json:"critical_vitals" gorm:"default:true"`
	FallDetectionEnabled       bool `json:"fall_detection" gorm:"default:true"`
	DeviceDisconnectionEnabled bool `json:"device_disconnection" gorm:"default:true"`
	LowBatteryEnabled          bool `json:"low_battery" gorm:"default:true"`
	MedicationReminderEnabled  bool `json:"medication_reminder"`

	EscalationEnabled      bool `json:"escalation_enabled" gorm:"default:true"`
	EscalationDelayMinutes int  `json:"escalation_delay_minutes" gorm:"default:5" validate:"omitempty,min=1"`
	EscalationMaxAttempts  int  `json:"escalation_max_attempts" gorm:"default:3" validate:"omitempty,min=1"`

	EmergencyContacts []EmergencyContact `json:"emergency_contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// DefaultAlertPreference is the fully-enumerated record created on first
// access: push/sms/email on, no quiet hours(22:00-07:00 with emergency
// override once enabled), reminders off, escalation on at 5min x3.
func DefaultAlertPreference(userID, userEmail string) *AlertPreference {
	return &AlertPreference{
		UserID:    userID,
		UserEmail: userEmail,

		PushEnabled:      true,
		SmsEnabled:       true,
		EmailEnabled:     true,
		PhoneCallEnabled: false,

		QuietHoursEnabled: false,
		QuietHoursStart:   "22:00",
		QuietHoursEnd:     "07:00",
		EmergencyOverride: true,

		CriticalVitalsEnabled:      true,
		FallDetectionEnabled:       true,
		DeviceDisconnectionEnabled: true,
		LowBatteryEnabled:          true,
		MedicationReminderEnabled:  false,

		EscalationEnabled:      true,
		EscalationDelayMinutes: 5,
		EscalationMaxAttempts:  3,
	}
}

// EnabledChannels returns the enabled subset of channels in priority order.
func (prefs *AlertPreference) EnabledChannels() []string {
	channels := []string{}
	enabled := map[string]bool{
		PUSH_CHANNEL:       prefs.PushEnabled,
		SMS_CHANNEL:        prefs.SmsEnabled,
		EMAIL_CHANNEL:      prefs.EmailEnabled,
		PHONE_CALL_CHANNEL: prefs.PhoneCallEnabled,
	}

	for _, channel := range ChannelPriorityOrder {
		if enabled[channel] {
			channels = append(channels, channel)
		}
	}

	return channels
}

// AlertTypeEnabled reports whether the toggle for the given alert type is on.
// Unknown alert types are off.
func (prefs *AlertPreference) AlertTypeEnabled(alertType string) bool {
	switch alertType {
	case CRITICAL_VITALS_ALERT_TYPE:
		return prefs.CriticalVitalsEnabled
	case FALL_DETECTION_ALERT_TYPE:
		return prefs.FallDetectionEnabled
	case DEVICE_DISCONNECTION_ALERT_TYPE:
		return prefs.DeviceDisconnectionEnabled
	case LOW_BATTERY_ALERT_TYPE:
		return prefs.LowBatteryEnabled
	case MEDICATION_REMINDER_ALERT_TYPE:
		return prefs.MedicationReminderEnabled
	}

	return false
}

// FindAlertPreference loads a user's preferences with contacts in insertion order.
func FindAlertPreference(userID string) (*AlertPreference, error) {
	prefs := AlertPreference{}
	err := db.Preload("EmergencyContacts", func(db *gorm.DB) *gorm.DB {
		return db.Order("emergency_contacts.position ASC")
	}).First(&prefs, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return &prefs, nil
}

// GetOrCreateAlertPreference returns the user's preferences, creating the
// default record on first access.
func GetOrCreateAlertPreference(userID, userEmail string) (*AlertPreference, error) {
	unlock := lockPreference(userID)
	defer unlock()

	prefs, err := FindAlertPreference(userID)
	if err == nil {
		return prefs, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	prefs = DefaultAlertPreference(userID, userEmail)
	if err := db.Create(prefs).Error; err != nil {
		return nil, err
	}

	return prefs, nil
}

// ReplaceAlertPreference swaps a user's whole preference record,
// last-writer-wins - there is no merge. Contacts are replaced wholesale too.
func ReplaceAlertPreference(userID string, updated *AlertPreference) error {
	unlock := lockPreference(userID)
	defer unlock()

	existing := AlertPreference{}
	err := db.First(&existing, "user_id = ?", userID).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}

	updated.UserID = userID
	for i := range updated.EmergencyContacts {
		updated.EmergencyContacts[i].Position = i
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if existing.ID != 0 {
			err := tx.Where("alert_preference_id = ?", existing.ID).
				Delete(&EmergencyContact{}).Error
			if err != nil {
				return err
			}

			updated.ID = existing.ID
			updated.CreatedAt = existing.CreatedAt
		}

		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(updated).Error
	})
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func lockPreference(userID string) func() {
	val, _ := prefMutexes.LoadOrStore(userID, &sync.Mutex{})
	mu := val.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}
