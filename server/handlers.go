package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/vitalguard/vitalguard/server/classifier"
	"github.com/vitalguard/vitalguard/server/models"
	"github.com/vitalguard/vitalguard/utils"
	"gorm.io/gorm"
)

const DEFAULT_RETENTION_DAYS = 30

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type manualAlertParams struct {
	UserID    string                 `json:"user_id" validate:"required"`
	UserEmail string                 `json:"user_email" validate:"omitempty,email"`
	AlertType string                 `json:"alert_type"`
	Severity  string                 `json:"severity"`
	Vitals    *models.VitalsSnapshot `json:"vitals"`
}

// sensorDataParams carries the vitals as pointers, so a reading missing a
// required field is rejected instead of classifying a zero value.
type sensorDataParams struct {
	UserID         string     `json:"user_id" validate:"required"`
	UserEmail      string     `json:"user_email" validate:"required,email"`
	DeviceType     string     `json:"device_type"`
	MonitoringRole string     `json:"monitoring_role"`
	Temperature    *float64   `json:"temperature" validate:"required"`
	Humidity       *float64   `json:"humidity" validate:"required"`
	HeartRate      *float64   `json:"heart_rate" validate:"required"`
	SpO2           *float64   `json:"sp_o2" validate:"required"`
	RecordedAt     *time.Time `json:"recorded_at"`
}

type fallAlertParams struct {
	UserID        string                 `json:"user_id" validate:"required"`
	UserEmail     string                 `json:"user_email" validate:"omitempty,email"`
	Location      models.FallLocation    `json:"location"`
	Accelerometer models.XYZReading      `json:"accelerometer"`
	Gyroscope     models.XYZReading      `json:"gyroscope"`
	ImpactForce   float64                `json:"impact_force"`
	Vitals        *models.VitalsSnapshot `json:"vitals"`
}

func healthCheckHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Add("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"service": "vitalguard",
		"endpoints": []string{
			"POST /api/sensor-data",
			"GET /api/sensor-data/{uid}",
			"POST /api/emergency-alerts",
			"GET /api/emergency-alerts/{uid}",
			"PATCH /api/emergency-alerts/{id}/acknowledge",
			"PATCH /api/emergency-alerts/{id}/resolve",
			"POST /api/fall-detection",
			"GET /api/fall-detection/{uid}",
			"PATCH /api/fall-detection/{id}/false-alarm",
			"PATCH /api/fall-detection/{id}/resolve",
			"GET /api/all-alerts/{uid}",
			"GET /api/stats/{uid}",
			"GET /api/unresolved-alerts/{uid}",
			"DELETE /api/cleanup-alerts/{uid}",
			"GET|POST /api/alert-preferences/{uid}",
			"GET|POST /api/emergency-contacts/{uid}",
			"DELETE /api/emergency-contacts/{uid}/{index}",
			"POST /api/test-notification/{uid}",
			"GET /api/notification-summary/{uid}",
		},
	}})
}

// createSensorDataHandler stores a telemetry snapshot, classifies it & opens
// an alert when any vital is out of range.
func createSensorDataHandler(rw http.ResponseWriter, r *http.Request) {
	params := sensorDataParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(params)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	reading := models.SensorReading{
		UserID:         params.UserID,
		UserEmail:      params.UserEmail,
		DeviceType:     params.DeviceType,
		MonitoringRole: params.MonitoringRole,
		Temperature:    *params.Temperature,
		Humidity:       *params.Humidity,
		HeartRate:      *params.HeartRate,
		SpO2:           *params.SpO2,
		RecordedAt:     time.Now(),
	}
	if params.RecordedAt != nil {
		reading.RecordedAt = *params.RecordedAt
	}

	err = models.CreateSensorReading(&reading)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	verdict := classifier.Classify(classifier.Reading{
		Temperature: reading.Temperature,
		HeartRate:   reading.HeartRate,
		SpO2:        reading.SpO2,
	})

	data := map[string]interface{}{
		"reading":   reading,
		"severity":  verdict.Overall,
		"breakdown": verdict.Breakdown(),
	}

	if verdict.WarrantsAlert() {
		alert, err := alertService.CreateVitalsAlert(reading.UserID, reading.UserEmail, verdict, models.VitalsSnapshot{
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			HeartRate:   reading.HeartRate,
			SpO2:        reading.SpO2,
		})
		if err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}

		data["alert"] = map[string]interface{}{
			"id":                alert.ID,
			"severity":          alert.Severity,
			"notification_sent": alert.NotificationSent,
		}
	}

	rw.WriteHeader(http.StatusCreated)
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: data})
}

func findSensorDataHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit := queryInt(r, "limit", 0)

	var since *time.Time
	if days := queryInt(r, "days", 0); days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		since = &cutoff
	}

	readings, err := models.FetchSensorReadings(vars["uid"], limit, since)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: readings})
}

func createEmergencyAlertHandler(rw http.ResponseWriter, r *http.Request) {
	params := manualAlertParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(params)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	if params.AlertType != "" && !models.AlertTypeNameMap[params.AlertType] {
		writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("unknown alert type: '%v'", params.AlertType)}}, http.StatusBadRequest)
		return
	}

	alert, err := alertService.CreateManualAlert(
		params.UserID, params.UserEmail, params.AlertType, params.Severity, params.Vitals)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusCreated)
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: alert})
}

func findEmergencyAlertsHandler(rw http.ResponseWriter, r *http.Request) {
	findAlertsByOrigin(rw, r, models.VITALS_ALERT_ORIGIN, models.MANUAL_ALERT_ORIGIN)
}

func createFallAlertHandler(rw http.ResponseWriter, r *http.Request) {
	params := fallAlertParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	errs := validate.Struct(params)
	if errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	alert, err := alertService.CreateFallAlert(params.UserID, params.UserEmail, models.FallSnapshot{
		Location:      params.Location,
		Accelerometer: params.Accelerometer,
		Gyroscope:     params.Gyroscope,
		ImpactForce:   params.ImpactForce,
		Vitals:        params.Vitals,
	})
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusCreated)
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"alert":             alert,
		"notification_sent": alert.NotificationSent,
	}})
}

func findFallAlertsHandler(rw http.ResponseWriter, r *http.Request) {
	findAlertsByOrigin(rw, r, models.FALL_ALERT_ORIGIN)
}

// findAllAlertsHandler is the merged history feed, paged for dashboards.
func findAllAlertsHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	alerts, paging, err := models.FetchAlertsPage(vars["uid"], queryInt(r, "page", 1), queryInt(r, "limit", 0))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"alerts": alerts,
		"paging": paging,
	}})
}

func acknowledgeAlertHandler(rw http.ResponseWriter, r *http.Request) {
	transitionAlert(rw, r, alertService.Acknowledge)
}

func resolveAlertHandler(rw http.ResponseWriter, r *http.Request) {
	transitionAlert(rw, r, alertService.Resolve)
}

func falseAlarmAlertHandler(rw http.ResponseWriter, r *http.Request) {
	transitionAlert(rw, r, alertService.MarkFalseAlarm)
}

func statsHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["uid"]

	readingCount, err := models.CountSensorReadings(userID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	emergencyCount, err := models.CountAlerts(userID, models.VITALS_ALERT_ORIGIN, models.MANUAL_ALERT_ORIGIN)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	fallCount, err := models.CountAlerts(userID, models.FALL_ALERT_ORIGIN)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	averages, sampleCount, err := models.SensorReadingAverages(userID, time.Now().Add(-24*time.Hour))
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}
	averages.Temperature = utils.RoundTo(averages.Temperature, 1)
	averages.Humidity = utils.RoundTo(averages.Humidity, 1)
	averages.HeartRate = utils.RoundTo(averages.HeartRate, 1)
	averages.SpO2 = utils.RoundTo(averages.SpO2, 1)

	latest, err := models.LatestSensorReading(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"total_readings":         readingCount,
		"total_emergency_alerts": emergencyCount,
		"total_fall_alerts":      fallCount,
		"averages_24h":           averages,
		"samples_24h":            sampleCount,
		"latest_reading":         latest,
	}})
}

func unresolvedAlertsHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	counts, err := models.UnresolvedAlerts(vars["uid"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: counts})
}

// cleanupAlertsHandler purges resolved & false-alarm alerts older than
// ?days(config retention by default). Open alerts are never touched.
func cleanupAlertsHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	days := queryInt(r, "days", retentionDays())
	if days <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"days must be a positive number"}}, http.StatusBadRequest)
		return
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	emergencyDeleted, fallsDeleted, err := models.PurgeOldAlerts(vars["uid"], cutoff)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"emergency_deleted": emergencyDeleted,
		"falls_deleted":     fallsDeleted,
		"older_than_days":   days,
	}})
}

func testNotificationHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	params := struct {
		UserEmail string `json:"user_email"`
	}{}
	// Body is optional
	json.NewDecoder(r.Body).Decode(&params)

	channels, err := alertService.SendTest(vars["uid"], params.UserEmail)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"channels": channels,
	}})
}

func notificationSummaryHandler(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	prefs, err := models.GetOrCreateAlertPreference(vars["uid"], "")
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]interface{}{
		"enabled_channels": prefs.EnabledChannels(),
		"quiet_hours": map[string]interface{}{
			"enabled":            prefs.QuietHoursEnabled,
			"start":              prefs.QuietHoursStart,
			"end":                prefs.QuietHoursEnd,
			"emergency_override": prefs.EmergencyOverride,
		},
		"escalation": map[string]interface{}{
			"enabled":       prefs.EscalationEnabled,
			"delay_minutes": prefs.EscalationDelayMinutes,
			"max_attempts":  prefs.EscalationMaxAttempts,
		},
		"emergency_contacts": len(prefs.EmergencyContacts),
	}})
}
