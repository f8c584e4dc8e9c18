// Package escalation manages the deferred re-notification task armed for
// each unacknowledged alert. It owns timing and cancellation only; what a
// fire actually does is supplied by the caller.
package escalation

import (
	"sync"
	"time"

	"github.com/vitalguard/vitalguard/server/logger"
)

var logg = logger.NewLogger()

// FireFunc runs on every elapsed delay. Returning false stops the task
// early(e.g. the alert is no longer open).
type FireFunc func(alertID uint, attempt int) bool

type Scheduler struct {
	fire  FireFunc
	mu    sync.Mutex
	tasks map[uint]*task
}

type task struct {
	cancelChan chan struct{}
}

func NewScheduler(fire FireFunc) *Scheduler {
	return &Scheduler{
		fire:  fire,
		tasks: make(map[uint]*task),
	}
}

// Schedule arms a deferred task for the alert: fire after each 'delay', up
// to 'maxAttempts' times. At most one task per alert; re-scheduling an
// already-armed alert is a no-op.
func (scheduler *Scheduler) Schedule(alertID uint, delay time.Duration, maxAttempts int) {
	if maxAttempts <= 0 {
		return
	}

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if _, armed := scheduler.tasks[alertID]; armed {
		return
	}

	armedTask := &task{cancelChan: make(chan struct{})}
	scheduler.tasks[alertID] = armedTask

	logg.Infof("escalation armed for alert=%v delay=%v max_attempts=%v", alertID, delay, maxAttempts)
	go scheduler.loop(alertID, armedTask, delay, maxAttempts)
}

// Cancel prevents any future fire for the alert. A fire that has already
// started concurrently may still complete once - the accepted stray-fire
// window, see the package tests.
func (scheduler *Scheduler) Cancel(alertID uint) {
	scheduler.mu.Lock()
	cancelledTask, armed := scheduler.tasks[alertID]
	delete(scheduler.tasks, alertID)
	scheduler.mu.Unlock()

	if armed {
		close(cancelledTask.cancelChan)
		logg.Infof("escalation cancelled for alert=%v", alertID)
	}
}

// Pending reports whether a task is currently armed for the alert.
func (scheduler *Scheduler) Pending(alertID uint) bool {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	_, armed := scheduler.tasks[alertID]
	return armed
}

// CancelAll drops every armed task - used on server shutdown.
func (scheduler *Scheduler) CancelAll() {
	scheduler.mu.Lock()
	tasks := scheduler.tasks
	scheduler.tasks = make(map[uint]*task)
	scheduler.mu.Unlock()

	for _, armedTask := range tasks {
		close(armedTask.cancelChan)
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (scheduler *Scheduler) loop(alertID uint, armedTask *task, delay time.Duration, maxAttempts int) {
	defer scheduler.remove(alertID, armedTask)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-armedTask.cancelChan:
			return
		case <-timer.C:
			if !scheduler.fire(alertID, attempt) {
				return
			}
			if attempt < maxAttempts {
				timer.Reset(delay)
			}
		}
	}
}

// remove drops the task only if it's still the one we armed - Cancel
// followed by a fresh Schedule must not lose the new task.
func (scheduler *Scheduler) remove(alertID uint, finishedTask *task) {
	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()

	if scheduler.tasks[alertID] == finishedTask {
		delete(scheduler.tasks, alertID)
	}
}
