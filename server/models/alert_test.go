package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createAlertAt(t *testing.T, userID, origin string, createdAt time.Time) *Alert {
	alert := &Alert{
		BaseModel: BaseModel{CreatedAt: createdAt},
		UserID:    userID,
		UserEmail: userID + "@example.com",
		AlertType: CRITICAL_VITALS_ALERT_TYPE,
		Origin:    origin,
		Severity:  "critical",
	}
	require.Nil(t, CreateAlert(alert))

	return alert
}

func TestCreateAndFindAlert(t *testing.T) {
	InitializeTestDb()

	alert := &Alert{
		UserID:    "user-1",
		AlertType: CRITICAL_VITALS_ALERT_TYPE,
		Origin:    VITALS_ALERT_ORIGIN,
		Severity:  "critical",
	}
	require.Nil(t, alert.SetVitalsPayload(&VitalsSnapshot{
		Temperature: 39.5,
		HeartRate:   135,
		SpO2:        85,
		Breakdown:   map[string]string{"temperature": "critical"},
	}))
	require.Nil(t, CreateAlert(alert))

	found, err := FindAlert(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, OPEN_ALERT, found.StatusName())
	assert.False(t, found.IsTerminal())

	snapshot, err := found.VitalsPayload()
	require.Nil(t, err)
	assert.Equal(t, 39.5, snapshot.Temperature)
	assert.Equal(t, "critical", snapshot.Breakdown["temperature"])
}

func TestFallPayloadRoundTrip(t *testing.T) {
	InitializeTestDb()

	alert := &Alert{
		UserID:    "user-1",
		AlertType: FALL_DETECTION_ALERT_TYPE,
		Origin:    FALL_ALERT_ORIGIN,
		Severity:  "emergency",
	}
	require.Nil(t, alert.SetFallPayload(&FallSnapshot{
		Location:    FallLocation{Address: "12 Rose Lane"},
		ImpactForce: 3.4,
	}))
	require.Nil(t, CreateAlert(alert))

	found, err := FindAlert(alert.ID)
	require.Nil(t, err)

	snapshot, err := found.FallPayload()
	require.Nil(t, err)
	assert.Equal(t, "12 Rose Lane", snapshot.Location.Address)
	assert.Equal(t, 3.4, snapshot.ImpactForce)
}

func TestUpdateWithPreloadedStatus(t *testing.T) {
	InitializeTestDb()

	alert := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, time.Now())

	// FindAlert preloads AlertStatus; updating through the loaded struct must
	// still persist the map's alert_status_id instead of re-saving the
	// preloaded association
	found, err := FindAlert(alert.ID)
	require.Nil(t, err)
	require.Equal(t, OPEN_ALERT, found.StatusName())

	acked, err := FindAlertStatus(ACKNOWLEDGED_ALERT)
	require.Nil(t, err)

	now := time.Now()
	require.Nil(t, found.Update(map[string]interface{}{
		"alert_status_id": acked.ID,
		"resolved_at":     &now,
	}))

	refetched, err := FindAlert(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, ACKNOWLEDGED_ALERT, refetched.StatusName())
	assert.NotNil(t, refetched.ResolvedAt)
}

func TestSetAlertStatus(t *testing.T) {
	InitializeTestDb()

	alert := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, time.Now())

	require.Nil(t, SetAlertStatus(alert.ID, RESOLVED_ALERT))

	found, err := FindAlert(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, RESOLVED_ALERT, found.StatusName())
	assert.True(t, found.IsTerminal())
}

func TestFetchAlertsByOriginNewestFirst(t *testing.T) {
	InitializeTestDb()

	now := time.Now()
	oldest := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, now.Add(-2*time.Hour))
	fall := createAlertAt(t, "user-1", FALL_ALERT_ORIGIN, now.Add(-1*time.Hour))
	newest := createAlertAt(t, "user-1", MANUAL_ALERT_ORIGIN, now)
	createAlertAt(t, "user-2", VITALS_ALERT_ORIGIN, now)

	alerts, err := FetchAlerts("user-1", 10)
	require.Nil(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, newest.ID, alerts[0].ID)
	assert.Equal(t, oldest.ID, alerts[2].ID)

	emergencies, err := FetchAlerts("user-1", 10, VITALS_ALERT_ORIGIN, MANUAL_ALERT_ORIGIN)
	require.Nil(t, err)
	require.Len(t, emergencies, 2)
	for _, alert := range emergencies {
		assert.NotEqual(t, fall.ID, alert.ID)
	}
}

func TestFetchAlertsPage(t *testing.T) {
	InitializeTestDb()

	now := time.Now()
	for i := 0; i < 5; i++ {
		createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, now.Add(time.Duration(-i)*time.Hour))
	}

	alerts, paging, err := FetchAlertsPage("user-1", 1, 2)
	require.Nil(t, err)
	assert.Len(t, alerts, 2)
	assert.Equal(t, int64(5), paging.Total)
	assert.Equal(t, int64(1), paging.Page)
	assert.Equal(t, int64(3), paging.Pages)

	lastPage, _, err := FetchAlertsPage("user-1", 3, 2)
	require.Nil(t, err)
	assert.Len(t, lastPage, 1)

	empty, _, err := FetchAlertsPage("user-1", 4, 2)
	require.Nil(t, err)
	assert.Empty(t, empty)
}

func TestUnresolvedAlertsCountsOnlyOpen(t *testing.T) {
	InitializeTestDb()

	createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, time.Now())
	createAlertAt(t, "user-1", FALL_ALERT_ORIGIN, time.Now())
	acked := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, time.Now())
	require.Nil(t, SetAlertStatus(acked.ID, ACKNOWLEDGED_ALERT))
	falseAlarm := createAlertAt(t, "user-1", FALL_ALERT_ORIGIN, time.Now())
	require.Nil(t, SetAlertStatus(falseAlarm.ID, FALSE_ALARM_ALERT))

	counts, err := UnresolvedAlerts("user-1")
	require.Nil(t, err)
	assert.Equal(t, int64(1), counts.Emergency)
	assert.Equal(t, int64(1), counts.Falls)
	assert.Equal(t, int64(2), counts.Total)
}

func TestPurgeOldAlerts(t *testing.T) {
	InitializeTestDb()

	old := time.Now().Add(-48 * time.Hour)

	// Old & terminal - purged
	resolved := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, old)
	require.Nil(t, SetAlertStatus(resolved.ID, RESOLVED_ALERT))
	falseAlarm := createAlertAt(t, "user-1", FALL_ALERT_ORIGIN, old)
	require.Nil(t, SetAlertStatus(falseAlarm.ID, FALSE_ALARM_ALERT))

	// Old but still open - kept
	stillOpen := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, old)

	// Terminal but recent - kept
	recent := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, time.Now())
	require.Nil(t, SetAlertStatus(recent.ID, RESOLVED_ALERT))

	cutoff := time.Now().Add(-24 * time.Hour)
	emergencyDeleted, fallsDeleted, err := PurgeOldAlerts("user-1", cutoff)
	require.Nil(t, err)
	assert.Equal(t, int64(1), emergencyDeleted)
	assert.Equal(t, int64(1), fallsDeleted)

	_, err = FindAlert(stillOpen.ID)
	assert.Nil(t, err, "open alerts are never purged")
	_, err = FindAlert(recent.ID)
	assert.Nil(t, err, "alerts inside the retention window are kept")
	_, err = FindAlert(resolved.ID)
	assert.NotNil(t, err)
}

func TestIncrementEscalationAttempts(t *testing.T) {
	InitializeTestDb()

	alert := createAlertAt(t, "user-1", VITALS_ALERT_ORIGIN, time.Now())

	require.Nil(t, IncrementEscalationAttempts(alert.ID))
	require.Nil(t, IncrementEscalationAttempts(alert.ID))

	found, err := FindAlert(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, 2, found.EscalationAttempts)
}
