package models

import "time"

// EscalationEvent records a single escalation send to an emergency contact.
type EscalationEvent struct {
	BaseModel
	AlertID   uint `json:"alert_id" gorm:"not null;index"`
	ContactID uint `json:"contact_id"`
	Attempt   int  `json:"attempt"`
}

func CreateEscalationEvent(alertID, contactID uint, attempt int) error {
	currentTime := time.Now()
	return db.Model(&EscalationEvent{}).Create(map[string]interface{}{
		"alert_id":   alertID,
		"contact_id": contactID,
		"attempt":    attempt,
		"created_at": currentTime,
		"updated_at": currentTime,
	}).Error
}

func EscalationEventsForAlert(alertID uint) ([]EscalationEvent, error) {
	events := []EscalationEvent{}
	err := db.Order("created_at ASC").Find(&events, "alert_id = ?", alertID).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}
