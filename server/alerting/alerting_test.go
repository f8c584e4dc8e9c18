package alerting

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalguard/vitalguard/server/classifier"
	"github.com/vitalguard/vitalguard/server/models"
	"github.com/vitalguard/vitalguard/server/notifier"
	"github.com/vitalguard/vitalguard/server/prefgate"
	"github.com/vitalguard/vitalguard/server/work"
	"gorm.io/gorm"
)

// queueRecorder stands in for the worker adapter, capturing enqueued jobs.
type queueRecorder struct {
	mu       sync.Mutex
	handlers map[string]work.Handler
	jobs     []work.JobParams
}

func newQueueRecorder() *queueRecorder {
	return &queueRecorder{handlers: make(map[string]work.Handler)}
}

func (q *queueRecorder) Register(name string, handler work.Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = handler
	return nil
}

func (q *queueRecorder) Perform(job work.JobParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueRecorder) jobCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// runAll executes captured jobs the way the worker pool would: args are
// round-tripped through JSON before the handler sees them.
func (q *queueRecorder) runAll(t *testing.T) {
	q.mu.Lock()
	jobs := append([]work.JobParams{}, q.jobs...)
	q.jobs = nil
	q.mu.Unlock()

	for _, job := range jobs {
		raw, err := json.Marshal(job.Args)
		require.Nil(t, err)

		args := map[string]interface{}{}
		require.Nil(t, json.Unmarshal(raw, &args))

		handler, ok := q.handlers[job.Handler]
		require.True(t, ok, "no handler registered for %v", job.Handler)
		require.Nil(t, handler(args))
	}
}

func newTestService() (*Service, *notifier.Recorder, *queueRecorder) {
	recorder := notifier.NewRecorder()
	queue := newQueueRecorder()
	gate := prefgate.NewGate(time.UTC)

	return NewService(gate, recorder, queue), recorder, queue
}

func TestCreateVitalsAlert(t *testing.T) {
	models.InitializeTestDb()
	service, recorder, queue := newTestService()
	defer service.Stop()

	_, err := models.GetOrCreateAlertPreference("user-1", "user-1@example.com")
	require.Nil(t, err)

	verdict := classifier.Classify(classifier.Reading{Temperature: 39.5, HeartRate: 135, SpO2: 85})
	require.Equal(t, classifier.CRITICAL_SEVERITY, verdict.Overall)

	alert, err := service.CreateVitalsAlert("user-1", "user-1@example.com",
		verdict, models.VitalsSnapshot{Temperature: 39.5, HeartRate: 135, SpO2: 85})
	require.Nil(t, err)

	assert.Equal(t, classifier.CRITICAL_SEVERITY, alert.Severity)
	assert.Equal(t, models.OPEN_ALERT, alert.StatusName())
	assert.True(t, alert.NotificationSent)
	assert.True(t, service.EscalationPending(alert.ID))

	snapshot, err := alert.VitalsPayload()
	require.Nil(t, err)
	assert.Equal(t, classifier.CRITICAL_SEVERITY, snapshot.Breakdown[classifier.TEMPERATURE_METRIC])

	// Delivery goes through the queue on the user's enabled channels
	require.Equal(t, 1, queue.jobCount())
	queue.runAll(t)
	assert.Equal(t,
		[]string{models.PUSH_CHANNEL, models.SMS_CHANNEL, models.EMAIL_CHANNEL},
		recorder.ChannelsNotified())
	assert.Contains(t, recorder.Sends[0].Message, "Critical vital signs detected")
}

func TestCreateVitalsAlertTypeDisabled(t *testing.T) {
	models.InitializeTestDb()
	service, recorder, queue := newTestService()
	defer service.Stop()

	prefs, err := models.GetOrCreateAlertPreference("user-2", "user-2@example.com")
	require.Nil(t, err)
	prefs.CriticalVitalsEnabled = false
	require.Nil(t, models.ReplaceAlertPreference("user-2", prefs))

	verdict := classifier.Classify(classifier.Reading{Temperature: 39.5, HeartRate: 135, SpO2: 85})
	alert, err := service.CreateVitalsAlert("user-2", "user-2@example.com",
		verdict, models.VitalsSnapshot{Temperature: 39.5, HeartRate: 135, SpO2: 85})
	require.Nil(t, err)

	// The alert is still recorded, just not delivered or escalated
	assert.Equal(t, models.OPEN_ALERT, alert.StatusName())
	assert.False(t, alert.NotificationSent)
	assert.False(t, service.EscalationPending(alert.ID))
	assert.Zero(t, queue.jobCount())
	assert.Zero(t, recorder.SendCount())
}

func TestCreateFallAlert(t *testing.T) {
	models.InitializeTestDb()
	service, recorder, queue := newTestService()
	defer service.Stop()

	_, err := models.GetOrCreateAlertPreference("user-3", "user-3@example.com")
	require.Nil(t, err)

	alert, err := service.CreateFallAlert("user-3", "user-3@example.com", models.FallSnapshot{
		Location:    models.FallLocation{Address: "12 Rose Lane"},
		ImpactForce: 3.4,
	})
	require.Nil(t, err)

	assert.Equal(t, classifier.EMERGENCY_SEVERITY, alert.Severity)
	assert.Equal(t, models.FALL_ALERT_ORIGIN, alert.Origin)
	assert.True(t, alert.NotificationSent)
	assert.True(t, service.EscalationPending(alert.ID))

	require.Equal(t, 1, queue.jobCount())
	queue.runAll(t)
	require.NotZero(t, recorder.SendCount())
	assert.Contains(t, recorder.Sends[0].Message, "FALL DETECTED! Location: 12 Rose Lane")
}

func TestCreateManualAlertBypassesGate(t *testing.T) {
	models.InitializeTestDb()
	service, _, queue := newTestService()
	defer service.Stop()

	prefs, err := models.GetOrCreateAlertPreference("user-4", "user-4@example.com")
	require.Nil(t, err)
	prefs.CriticalVitalsEnabled = false
	require.Nil(t, models.ReplaceAlertPreference("user-4", prefs))

	alert, err := service.CreateManualAlert("user-4", "user-4@example.com", "", "", nil)
	require.Nil(t, err)

	assert.Equal(t, models.MANUAL_ALERT_ORIGIN, alert.Origin)
	assert.Equal(t, classifier.CRITICAL_SEVERITY, alert.Severity)
	assert.True(t, alert.NotificationSent)
	assert.Equal(t, 1, queue.jobCount(), "manual alerts always go out")
	assert.True(t, service.EscalationPending(alert.ID))
}

func TestLifecycleTransitions(t *testing.T) {
	models.InitializeTestDb()
	service, _, _ := newTestService()
	defer service.Stop()

	verdict := classifier.Classify(classifier.Reading{Temperature: 39.5, HeartRate: 90, SpO2: 95})
	alert, err := service.CreateVitalsAlert("user-5", "user-5@example.com",
		verdict, models.VitalsSnapshot{Temperature: 39.5, HeartRate: 90, SpO2: 95})
	require.Nil(t, err)
	require.True(t, service.EscalationPending(alert.ID))

	acked, err := service.Acknowledge(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, models.ACKNOWLEDGED_ALERT, acked.StatusName())
	assert.NotNil(t, acked.ResolvedAt)
	assert.False(t, service.EscalationPending(alert.ID), "acknowledge cancels escalation")

	// The transition must land in the database, not just on the returned struct
	persisted, err := models.FindAlert(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, models.ACKNOWLEDGED_ALERT, persisted.StatusName())
	assert.NotNil(t, persisted.ResolvedAt)

	// Terminal states are sticky, further transitions are no-ops
	resolved, err := service.Resolve(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, models.ACKNOWLEDGED_ALERT, resolved.StatusName())

	falseAlarm, err := service.MarkFalseAlarm(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, models.ACKNOWLEDGED_ALERT, falseAlarm.StatusName())
}

func TestTransitionUnknownAlert(t *testing.T) {
	models.InitializeTestDb()
	service, _, _ := newTestService()
	defer service.Stop()

	_, err := service.Resolve(9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRearmOpenAlerts(t *testing.T) {
	models.InitializeTestDb()
	service, _, _ := newTestService()

	verdict := classifier.Classify(classifier.Reading{Temperature: 39.5, HeartRate: 90, SpO2: 95})
	open, err := service.CreateVitalsAlert("user-7", "user-7@example.com",
		verdict, models.VitalsSnapshot{Temperature: 39.5, HeartRate: 90, SpO2: 95})
	require.Nil(t, err)
	resolved, err := service.CreateVitalsAlert("user-7", "user-7@example.com",
		verdict, models.VitalsSnapshot{Temperature: 39.5, HeartRate: 90, SpO2: 95})
	require.Nil(t, err)
	_, err = service.Resolve(resolved.ID)
	require.Nil(t, err)

	// Simulate a restart: all in-memory escalation state is gone
	service.Stop()
	restarted, _, _ := newTestService()
	defer restarted.Stop()
	require.False(t, restarted.EscalationPending(open.ID))

	require.Nil(t, restarted.RearmOpenAlerts())
	assert.True(t, restarted.EscalationPending(open.ID))
	assert.False(t, restarted.EscalationPending(resolved.ID))
}

func TestEscalationFire(t *testing.T) {
	models.InitializeTestDb()
	service, recorder, _ := newTestService()
	defer service.Stop()

	_, err := models.GetOrCreateAlertPreference("user-6", "user-6@example.com")
	require.Nil(t, err)
	require.Nil(t, models.AddEmergencyContact("user-6", &models.EmergencyContact{
		Name:  "Ama Mensah",
		Phone: "+12345678900",
	}))
	require.Nil(t, models.AddEmergencyContact("user-6", &models.EmergencyContact{
		Name:     "Kojo Mensah",
		Phone:    "+12345678901",
		Priority: 5,
	}))

	verdict := classifier.Classify(classifier.Reading{Temperature: 39.5, HeartRate: 90, SpO2: 95})
	alert, err := service.CreateVitalsAlert("user-6", "user-6@example.com",
		verdict, models.VitalsSnapshot{Temperature: 39.5, HeartRate: 90, SpO2: 95})
	require.Nil(t, err)

	assert.True(t, service.escalationFire(alert.ID, 1))
	assert.Equal(t, 2, recorder.ContactNoticeCount())
	assert.Equal(t, "Ama Mensah", recorder.ContactNotices[0].Name, "contacts reached in priority order")
	assert.Equal(t, "Kojo Mensah", recorder.ContactNotices[1].Name)

	events, err := models.EscalationEventsForAlert(alert.ID)
	require.Nil(t, err)
	assert.Len(t, events, 2)

	updated, err := models.FindAlert(alert.ID)
	require.Nil(t, err)
	assert.Equal(t, 1, updated.EscalationAttempts)

	// Once the alert is terminal, the fire is a no-op & stops the task
	_, err = service.Resolve(alert.ID)
	require.Nil(t, err)
	assert.False(t, service.escalationFire(alert.ID, 2))
	assert.Equal(t, 2, recorder.ContactNoticeCount())
}
