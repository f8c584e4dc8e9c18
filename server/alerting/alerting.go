package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/vitalguard/vitalguard/server/classifier"
	"github.com/vitalguard/vitalguard/server/escalation"
	"github.com/vitalguard/vitalguard/server/logger"
	"github.com/vitalguard/vitalguard/server/models"
	"github.com/vitalguard/vitalguard/server/notifier"
	"github.com/vitalguard/vitalguard/server/prefgate"
	"github.com/vitalguard/vitalguard/server/work"
)

const (
	DELIVER_NOTIFICATIONS_HANDLER = "deliver_alert_notifications"

	DEFAULT_ESCALATION_DELAY_MINUTES = 5
	DEFAULT_ESCALATION_MAX_ATTEMPTS  = 3
)

var logg = logger.NewLogger()

// Enqueuer is the slice of the work adapter the alert service needs for
// async notification delivery.
type Enqueuer interface {
	Register(name string, handler work.Handler) error
	Perform(job work.JobParams) error
}

// Service owns the alert lifecycle: creation(with the gate decision applied
// once), terminal transitions, notification dispatch & escalation.
type Service struct {
	gate      *prefgate.Gate
	notifier  notifier.Notifier
	queue     Enqueuer
	scheduler *escalation.Scheduler

	alertMutexes sync.Map
}

func NewService(gate *prefgate.Gate, channelNotifier notifier.Notifier, queue Enqueuer) *Service {
	service := &Service{
		gate:     gate,
		notifier: channelNotifier,
		queue:    queue,
	}
	service.scheduler = escalation.NewScheduler(service.escalationFire)

	err := queue.Register(DELIVER_NOTIFICATIONS_HANDLER, service.deliverNotifications)
	if err != nil {
		logg.Error(err)
	}

	return service
}

// CreateVitalsAlert records an alert for an out-of-range vitals verdict,
// dispatches notifications per the gate decision & arms escalation for
// critical readings. The alert row is written even when the gate suppresses
// delivery.
func (service *Service) CreateVitalsAlert(userID, userEmail string, verdict classifier.Verdict, snapshot models.VitalsSnapshot) (*models.Alert, error) {
	snapshot.Breakdown = verdict.Breakdown()

	alert := &models.Alert{
		UserID:    userID,
		UserEmail: userEmail,
		AlertType: models.CRITICAL_VITALS_ALERT_TYPE,
		Origin:    models.VITALS_ALERT_ORIGIN,
		Severity:  verdict.Overall,
	}
	if err := alert.SetVitalsPayload(&snapshot); err != nil {
		return nil, err
	}

	decision := service.gate.Decide(userID, models.CRITICAL_VITALS_ALERT_TYPE, verdict.Overall)
	alert.NotificationSent = decision.Send

	if err := models.CreateAlert(alert); err != nil {
		return nil, err
	}

	if decision.Send {
		service.dispatchNotifications(alert, decision.Channels, vitalsMessage(&snapshot))
	}
	if decision.Send && classifier.AtLeastCritical(verdict.Overall) {
		service.armEscalation(alert)
	}

	return alert, nil
}

// CreateFallAlert records a fall-detection alert. Falls are always treated
// as emergencies, so quiet hours only suppress delivery when the user has
// turned the emergency override off.
func (service *Service) CreateFallAlert(userID, userEmail string, snapshot models.FallSnapshot) (*models.Alert, error) {
	alert := &models.Alert{
		UserID:    userID,
		UserEmail: userEmail,
		AlertType: models.FALL_DETECTION_ALERT_TYPE,
		Origin:    models.FALL_ALERT_ORIGIN,
		Severity:  classifier.EMERGENCY_SEVERITY,
	}
	if err := alert.SetFallPayload(&snapshot); err != nil {
		return nil, err
	}

	decision := service.gate.Decide(userID, models.FALL_DETECTION_ALERT_TYPE, classifier.EMERGENCY_SEVERITY)
	alert.NotificationSent = decision.Send

	if err := models.CreateAlert(alert); err != nil {
		return nil, err
	}

	if decision.Send {
		service.dispatchNotifications(alert, decision.Channels, fallMessage(&snapshot))
		service.armEscalation(alert)
	}

	return alert, nil
}

// CreateManualAlert records a caller-initiated alert(e.g. an SOS button).
// Manual alerts bypass the gate entirely - they always go out on the user's
// enabled channels.
func (service *Service) CreateManualAlert(userID, userEmail, alertType, severity string, snapshot *models.VitalsSnapshot) (*models.Alert, error) {
	if severity == "" {
		severity = classifier.CRITICAL_SEVERITY
	}
	if alertType == "" {
		alertType = models.CRITICAL_VITALS_ALERT_TYPE
	}

	alert := &models.Alert{
		UserID:           userID,
		UserEmail:        userEmail,
		AlertType:        alertType,
		Origin:           models.MANUAL_ALERT_ORIGIN,
		Severity:         severity,
		NotificationSent: true,
	}
	if snapshot != nil {
		if err := alert.SetVitalsPayload(snapshot); err != nil {
			return nil, err
		}
	}

	if err := models.CreateAlert(alert); err != nil {
		return nil, err
	}

	service.dispatchNotifications(alert, service.enabledChannels(userID, userEmail), manualMessage(alert))
	if classifier.AtLeastCritical(severity) {
		service.armEscalation(alert)
	}

	return alert, nil
}

// Acknowledge moves an open alert to 'acknowledged' & cancels any pending
// escalation. Alerts already in a terminal state are returned unchanged.
func (service *Service) Acknowledge(alertID uint) (*models.Alert, error) {
	return service.transitionTo(alertID, models.ACKNOWLEDGED_ALERT)
}

// Resolve moves an open alert to 'resolved'.
func (service *Service) Resolve(alertID uint) (*models.Alert, error) {
	return service.transitionTo(alertID, models.RESOLVED_ALERT)
}

// MarkFalseAlarm moves an open alert to 'false_alarm'.
func (service *Service) MarkFalseAlarm(alertID uint) (*models.Alert, error) {
	return service.transitionTo(alertID, models.FALSE_ALARM_ALERT)
}

// SendTest synchronously sends a test message on every enabled channel &
// returns the channels used.
func (service *Service) SendTest(userID, userEmail string) ([]string, error) {
	prefs, err := models.GetOrCreateAlertPreference(userID, userEmail)
	if err != nil {
		return nil, err
	}

	channels := prefs.EnabledChannels()
	message := fmt.Sprintf("Test notification from VitalGuard for %v", userID)
	for _, channel := range channels {
		if err := service.notifier.Send(userID, channel, message); err != nil {
			logg.Errorf("test notification on %v failed: %v", channel, err)
		}
	}

	return channels, nil
}

// RearmOpenAlerts re-arms escalation for alerts that were still open when
// the process last stopped, so a restart doesn't silently drop them.
func (service *Service) RearmOpenAlerts() error {
	openAlerts, err := models.AlertsByStatus(models.OPEN_ALERT)
	if err != nil {
		return err
	}

	rearmed := 0
	for i := range openAlerts {
		alert := &openAlerts[i]
		if !alert.NotificationSent || !classifier.AtLeastCritical(alert.Severity) {
			continue
		}

		service.armEscalation(alert)
		rearmed++
	}

	if rearmed > 0 {
		logg.Infof("%v open alert(s) re-armed for escalation", rearmed)
	}

	return nil
}

// EscalationPending reports whether an escalation task is armed for the alert.
func (service *Service) EscalationPending(alertID uint) bool {
	return service.scheduler.Pending(alertID)
}

// Stop cancels all pending escalation tasks. Used on server shutdown.
func (service *Service) Stop() {
	service.scheduler.CancelAll()
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (service *Service) transitionTo(alertID uint, statusName string) (*models.Alert, error) {
	unlock := service.lockAlert(alertID)
	defer unlock()

	alert, err := models.FindAlert(alertID)
	if err != nil {
		return nil, err
	}

	if alert.IsTerminal() {
		return alert, nil
	}

	now := time.Now()
	alertStatus, err := models.FindAlertStatus(statusName)
	if err != nil {
		return nil, err
	}

	err = alert.Update(map[string]interface{}{
		"alert_status_id": alertStatus.ID,
		"resolved_at":     &now,
	})
	if err != nil {
		return nil, err
	}

	service.scheduler.Cancel(alert.ID)

	alert.AlertStatus = alertStatus
	alert.AlertStatusID = alertStatus.ID
	alert.ResolvedAt = &now

	return alert, nil
}

// dispatchNotifications hands delivery off to the worker pool, so sends
// never block the ingestion path.
func (service *Service) dispatchNotifications(alert *models.Alert, channels []string, message string) {
	err := service.queue.Perform(work.JobParams{
		Name:    fmt.Sprintf("deliver_alert_%v", alert.ID),
		Handler: DELIVER_NOTIFICATIONS_HANDLER,
		Args: map[string]interface{}{
			"alert_id": alert.ID,
			"user_id":  alert.UserID,
			"channels": channels,
			"message":  message,
		},
	})
	if err != nil {
		logg.Errorf("unable to enqueue notifications for alert %v: %v", alert.ID, err)
	}
}

// deliverNotifications is the job handler behind dispatchNotifications.
// Send failures are logged & swallowed - a partially delivered alert is not
// retried wholesale.
func (service *Service) deliverNotifications(args map[string]interface{}) error {
	userID, _ := args["user_id"].(string)
	message, _ := args["message"].(string)
	channelArgs, _ := args["channels"].([]interface{})

	for _, channelArg := range channelArgs {
		channel, ok := channelArg.(string)
		if !ok {
			continue
		}
		if err := service.notifier.Send(userID, channel, message); err != nil {
			logg.Errorf("delivery on %v failed for %v: %v", channel, userID, err)
		}
	}

	return nil
}

func (service *Service) armEscalation(alert *models.Alert) {
	enabled, delay, maxAttempts := escalationPolicy(alert.UserID)
	if !enabled {
		return
	}

	service.scheduler.Schedule(alert.ID, delay, maxAttempts)
}

// escalationFire notifies the user's emergency contacts, in priority order,
// as long as the alert is still open. Returning false stops further
// attempts.
func (service *Service) escalationFire(alertID uint, attempt int) bool {
	unlock := service.lockAlert(alertID)
	defer unlock()

	alert, err := models.FindAlert(alertID)
	if err != nil {
		logg.Errorf("escalation for alert %v aborted: %v", alertID, err)
		return false
	}

	if alert.IsTerminal() {
		return false
	}

	prefs, err := models.FindAlertPreference(alert.UserID)
	if err != nil {
		logg.Errorf("escalation for alert %v aborted: %v", alertID, err)
		return false
	}

	contacts := prefs.ContactsInEscalationOrder()
	if len(contacts) == 0 {
		logg.Warnf("no emergency contacts for %v, stopping escalation of alert %v", alert.UserID, alertID)
		return false
	}

	message := escalationMessage(alert, attempt)
	for _, contact := range contacts {
		if err := service.notifier.NotifyContact(contact, message); err != nil {
			logg.Errorf("unable to reach contact %v for alert %v: %v", contact.Name, alertID, err)
			continue
		}

		if err := models.CreateEscalationEvent(alert.ID, contact.ID, attempt); err != nil {
			logg.Error(err)
		}
	}

	if err := models.IncrementEscalationAttempts(alert.ID); err != nil {
		logg.Error(err)
	}

	return true
}

func (service *Service) enabledChannels(userID, userEmail string) []string {
	prefs, err := models.GetOrCreateAlertPreference(userID, userEmail)
	if err != nil {
		logg.Errorf("unable to load preferences for %v: %v", userID, err)
		return []string{models.PUSH_CHANNEL}
	}

	channels := prefs.EnabledChannels()
	if len(channels) == 0 {
		return []string{models.PUSH_CHANNEL}
	}

	return channels
}

func (service *Service) lockAlert(alertID uint) func() {
	value, _ := service.alertMutexes.LoadOrStore(alertID, &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()

	return mutex.Unlock
}

func escalationPolicy(userID string) (enabled bool, delay time.Duration, maxAttempts int) {
	delay = DEFAULT_ESCALATION_DELAY_MINUTES * time.Minute
	maxAttempts = DEFAULT_ESCALATION_MAX_ATTEMPTS

	prefs, err := models.FindAlertPreference(userID)
	if err != nil {
		// No record yet - escalate with the defaults rather than drop it.
		return true, delay, maxAttempts
	}

	if prefs.EscalationDelayMinutes > 0 {
		delay = time.Duration(prefs.EscalationDelayMinutes) * time.Minute
	}
	if prefs.EscalationMaxAttempts > 0 {
		maxAttempts = prefs.EscalationMaxAttempts
	}

	return prefs.EscalationEnabled, delay, maxAttempts
}

func vitalsMessage(snapshot *models.VitalsSnapshot) string {
	return fmt.Sprintf("Critical vital signs detected: Temp: %.1f°C, HR: %.0f bpm, SpO2: %.0f%%",
		snapshot.Temperature, snapshot.HeartRate, snapshot.SpO2)
}

func fallMessage(snapshot *models.FallSnapshot) string {
	location := snapshot.Location.Address
	if location == "" {
		location = fmt.Sprintf("%.5f, %.5f", snapshot.Location.Latitude, snapshot.Location.Longitude)
	}

	return fmt.Sprintf("FALL DETECTED! Location: %v", location)
}

func manualMessage(alert *models.Alert) string {
	return fmt.Sprintf("Emergency alert(%v) raised for %v", alert.AlertType, alert.UserID)
}

func escalationMessage(alert *models.Alert, attempt int) string {
	return fmt.Sprintf(
		"Hi,\nyou're getting this message because you're %v's emergency contact. "+
			"An alert(%v) from %v has not been acknowledged yet(attempt %v). "+
			"Can you please check on them?",
		alert.UserID, alert.AlertType, alert.CreatedAt.Format(time.RFC1123), attempt)
}
