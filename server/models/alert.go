package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

const (
	VITALS_ALERT_ORIGIN = "vitals"
	FALL_ALERT_ORIGIN   = "fall"
	MANUAL_ALERT_ORIGIN = "manual"
)

// XYZReading is a single 3-axis sample from the fall sensor.
type XYZReading struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VitalsSnapshot is the alert payload for vitals-origin alerts. Breakdown
// keeps the per-metric severity that produced the overall classification.
type VitalsSnapshot struct {
	Temperature float64           `json:"temperature"`
	Humidity    float64           `json:"humidity"`
	HeartRate   float64           `json:"heart_rate"`
	SpO2        float64           `json:"sp_o2"`
	Breakdown   map[string]string `json:"breakdown,omitempty"`
}

type FallLocation struct {
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// FallSnapshot is the alert payload for fall-origin alerts.
type FallSnapshot struct {
	Location      FallLocation    `json:"location"`
	Accelerometer XYZReading      `json:"accelerometer"`
	Gyroscope     XYZReading      `json:"gyroscope"`
	ImpactForce   float64         `json:"impact_force,omitempty"`
	Vitals        *VitalsSnapshot `json:"vitals,omitempty"`
}

type Alert struct {
	BaseModel
	UserID             string       `json:"user_id" gorm:"not null;index"`
	UserEmail          string       `json:"user_email"`
	AlertType          string       `json:"alert_type" gorm:"not null"`
	Origin             string       `json:"origin" gorm:"not null;index"`
	Severity           string       `json:"severity" gorm:"not null"`
	Payload            string       `json:"payload,omitempty" gorm:"type:text"`
	NotificationSent   bool         `json:"notification_sent"`
	EscalationAttempts int          `json:"escalation_attempts"`
	ResolvedAt         *time.Time   `json:"resolved_at,omitempty"`
	AlertStatusID      uint         `json:"alert_status_id"`
	AlertStatus        *AlertStatus `json:"status,omitempty"`
}

type UnresolvedAlertCounts struct {
	Emergency int64 `json:"emergency"`
	Falls     int64 `json:"falls"`
	Total     int64 `json:"total"`
}

// Update applies the column map by primary key. The update deliberately
// goes through a fresh model value, so a preloaded AlertStatus association
// can't be saved back over the map's alert_status_id.
func (alert *Alert) Update(data map[string]interface{}) error {
	return db.Model(&Alert{}).Where("id = ?", alert.ID).Updates(data).Error
}

// StatusName returns the alert's current status, or "" when not preloaded.
func (alert *Alert) StatusName() string {
	if alert.AlertStatus == nil {
		return ""
	}
	return alert.AlertStatus.Name
}

func (alert *Alert) IsTerminal() bool {
	return TerminalAlertStatusMap[alert.StatusName()]
}

func (alert *Alert) SetVitalsPayload(snapshot *VitalsSnapshot) error {
	return alert.setPayload(snapshot)
}

func (alert *Alert) SetFallPayload(snapshot *FallSnapshot) error {
	return alert.setPayload(snapshot)
}

func (alert *Alert) VitalsPayload() (*VitalsSnapshot, error) {
	snapshot := VitalsSnapshot{}
	err := json.Unmarshal([]byte(alert.Payload), &snapshot)
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}

func (alert *Alert) FallPayload() (*FallSnapshot, error) {
	snapshot := FallSnapshot{}
	err := json.Unmarshal([]byte(alert.Payload), &snapshot)
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}

func (alert *Alert) setPayload(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	alert.Payload = string(payload)

	return nil
}

// CreateAlert persists a new alert in the 'open' state.
func CreateAlert(alert *Alert) error {
	openStatus, err := FindAlertStatus(OPEN_ALERT)
	if err != nil {
		return err
	}

	alert.AlertStatusID = openStatus.ID
	alert.AlertStatus = openStatus

	return db.Omit("AlertStatus").Create(alert).Error
}

func FindAlert(id interface{}) (*Alert, error) {
	alert := Alert{}
	err := db.Preload("AlertStatus").First(&alert, "alerts.id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// SetAlertStatus moves the alert with the given id into the named status.
func SetAlertStatus(alertID interface{}, statusName string) error {
	alertStatus, err := FindAlertStatus(statusName)
	if err != nil {
		return err
	}

	return db.Model(&Alert{}).Where("id = ?", alertID).
		Update("alert_status_id", alertStatus.ID).Error
}

// FetchAlerts returns the newest alerts for a user, filtered by origin when
// origins are provided, newest first.
func FetchAlerts(userID string, limit int, origins ...string) ([]Alert, error) {
	alerts := []Alert{}

	query := db.Preload("AlertStatus").Scopes(forUser(userID), withLimit(limit)).
		Order("created_at DESC")
	if len(origins) > 0 {
		query = query.Where("origin IN ?", origins)
	}

	err := query.Find(&alerts).Error
	if err != nil {
		return nil, err
	}

	return alerts, nil
}

// FetchAlertsPage returns one page of a user's full alert history, newest
// first, with paging info for the dashboard feed.
func FetchAlertsPage(userID string, page, limit int) ([]Alert, *Paging, error) {
	total, err := CountAlerts(userID)
	if err != nil {
		return nil, nil, err
	}

	if page <= 0 {
		page = 1
	}
	pageSize := limit
	switch {
	case pageSize > MAX_PAGE_SIZE:
		pageSize = MAX_PAGE_SIZE
	case pageSize <= 0:
		pageSize = DEFAULT_PAGE_SIZE
	}

	alerts := []Alert{}
	err = db.Preload("AlertStatus").Scopes(forUser(userID)).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&alerts).Error
	if err != nil {
		return nil, nil, err
	}

	return alerts, newPaging(int64(page), int64(pageSize), total), nil
}

func AlertsByStatus(statusName string) ([]Alert, error) {
	alerts := []Alert{}

	err := db.Preload("AlertStatus").Joins(
		"INNER JOIN alert_statuses ON alert_statuses.id = alerts.alert_status_id AND alert_statuses.name = ?",
		statusName).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}

	return alerts, nil
}

func CountAlerts(userID string, origins ...string) (int64, error) {
	var count int64

	query := db.Model(&Alert{}).Scopes(forUser(userID))
	if len(origins) > 0 {
		query = query.Where("origin IN ?", origins)
	}

	err := query.Count(&count).Error
	return count, err
}

// UnresolvedAlerts counts alerts still in the 'open' state, split the way the
// dashboard wants them: vitals/manual(emergency) vs falls.
func UnresolvedAlerts(userID string) (*UnresolvedAlertCounts, error) {
	counts := UnresolvedAlertCounts{}

	openStatus, err := FindAlertStatus(OPEN_ALERT)
	if err != nil {
		return nil, err
	}

	err = db.Model(&Alert{}).Scopes(forUser(userID)).
		Where("alert_status_id = ? AND origin IN ?",
			openStatus.ID, []string{VITALS_ALERT_ORIGIN, MANUAL_ALERT_ORIGIN}).
		Count(&counts.Emergency).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&Alert{}).Scopes(forUser(userID)).
		Where("alert_status_id = ? AND origin = ?", openStatus.ID, FALL_ALERT_ORIGIN).
		Count(&counts.Falls).Error
	if err != nil {
		return nil, err
	}

	counts.Total = counts.Emergency + counts.Falls

	return &counts, nil
}

// PurgeOldAlerts deletes resolved & false-alarm alerts created before the
// cutoff. Open/acknowledged alerts are never purged. Returns the number of
// emergency(vitals/manual) and fall records removed.
func PurgeOldAlerts(userID string, cutoff time.Time) (emergencyDeleted int64, fallsDeleted int64, err error) {
	statusIDs, err := alertStatusIDs(RESOLVED_ALERT, FALSE_ALARM_ALERT)
	if err != nil {
		return 0, 0, err
	}

	res := db.Scopes(forUser(userID)).
		Where("alert_status_id IN ? AND created_at < ? AND origin IN ?",
			statusIDs, cutoff, []string{VITALS_ALERT_ORIGIN, MANUAL_ALERT_ORIGIN}).
		Delete(&Alert{})
	if res.Error != nil {
		return 0, 0, res.Error
	}
	emergencyDeleted = res.RowsAffected

	res = db.Scopes(forUser(userID)).
		Where("alert_status_id IN ? AND created_at < ? AND origin = ?",
			statusIDs, cutoff, FALL_ALERT_ORIGIN).
		Delete(&Alert{})
	if res.Error != nil {
		return emergencyDeleted, 0, res.Error
	}
	fallsDeleted = res.RowsAffected

	return emergencyDeleted, fallsDeleted, nil
}

// PurgeOldAlertsForAllUsers is the periodic-cleanup variant of PurgeOldAlerts.
func PurgeOldAlertsForAllUsers(cutoff time.Time) (int64, error) {
	statusIDs, err := alertStatusIDs(RESOLVED_ALERT, FALSE_ALARM_ALERT)
	if err != nil {
		return 0, err
	}

	res := db.Where("alert_status_id IN ? AND created_at < ?", statusIDs, cutoff).
		Delete(&Alert{})

	return res.RowsAffected, res.Error
}

func IncrementEscalationAttempts(alertID interface{}) error {
	return db.Model(&Alert{}).Where("id = ?", alertID).
		UpdateColumn("escalation_attempts", gorm.Expr("escalation_attempts + 1")).Error
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func alertStatusIDs(names ...string) ([]uint, error) {
	statuses := []AlertStatus{}
	err := db.Where("name IN ?", names).Find(&statuses).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(statuses))
	for _, status := range statuses {
		ids = append(ids, status.ID)
	}

	return ids, nil
}
