package models

import (
	"errors"
	"sort"
)

// ErrInvalidContactIndex signals a contact delete with an out-of-range index.
var ErrInvalidContactIndex = errors.New("invalid emergency contact index")

type EmergencyContact struct {
	BaseModel
	AlertPreferenceID uint   `json:"-" gorm:"not null;index"`
	Name              string `json:"name" validate:"required"`
	Phone             string `json:"phone" validate:"required"`
	Email             string `json:"email" validate:"omitempty,email"`
	Relationship      string `json:"relationship"`
	Priority          int    `json:"priority" gorm:"default:1"`
	Enabled           bool   `json:"enabled" gorm:"default:true"`
	// Position preserves insertion order & breaks priority ties.
	Position int `json:"-" gorm:"not null"`
}

// AddEmergencyContact appends a contact to the user's preference record.
// Priority defaults to the end of the current list.
func AddEmergencyContact(userID string, contact *EmergencyContact) error {
	unlock := lockPreference(userID)
	defer unlock()

	prefs, err := FindAlertPreference(userID)
	if err != nil {
		return err
	}

	if contact.Priority == 0 {
		contact.Priority = len(prefs.EmergencyContacts) + 1
	}
	if contact.Relationship == "" {
		contact.Relationship = "Contact"
	}
	contact.Enabled = true
	contact.Position = len(prefs.EmergencyContacts)
	contact.AlertPreferenceID = prefs.ID

	return db.Create(contact).Error
}

// DeleteEmergencyContactAtIndex removes the contact at the given position in
// the insertion-ordered list. An out-of-range index is a validation error,
// never silently ignored.
func DeleteEmergencyContactAtIndex(userID string, index int) (*EmergencyContact, error) {
	unlock := lockPreference(userID)
	defer unlock()

	prefs, err := FindAlertPreference(userID)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(prefs.EmergencyContacts) {
		return nil, ErrInvalidContactIndex
	}

	removed := prefs.EmergencyContacts[index]
	if err := db.Delete(&EmergencyContact{}, removed.ID).Error; err != nil {
		return nil, err
	}

	// Re-pack positions so index-based deletes stay stable.
	for i, contact := range prefs.EmergencyContacts {
		if i <= index {
			continue
		}
		err := db.Model(&EmergencyContact{}).Where("id = ?", contact.ID).
			Update("position", i-1).Error
		if err != nil {
			return nil, err
		}
	}

	return &removed, nil
}

// ContactsInEscalationOrder returns the enabled contacts sorted by priority,
// insertion order breaking ties. This is the order escalation reaches out in.
func (prefs *AlertPreference) ContactsInEscalationOrder() []EmergencyContact {
	contacts := []EmergencyContact{}
	for _, contact := range prefs.EmergencyContacts {
		if contact.Enabled {
			contacts = append(contacts, contact)
		}
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		if contacts[i].Priority != contacts[j].Priority {
			return contacts[i].Priority < contacts[j].Priority
		}
		return contacts[i].Position < contacts[j].Position
	})

	return contacts
}
