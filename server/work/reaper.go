package work

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vitalguard/vitalguard/server/models"
	"gorm.io/gorm"
)

// stuckJobsReaper requeues jobs that have sat 'in-progress' for too long,
// e.g. after a worker died mid-job.
type stuckJobsReaper struct {
	stopChan chan struct{}
}

func newStuckJobsReaper() *stuckJobsReaper {
	return &stuckJobsReaper{
		stopChan: make(chan struct{}),
	}
}

func (r *stuckJobsReaper) start() {
	go r.loop()
}

func (r *stuckJobsReaper) stop() {
	r.stopChan <- struct{}{}
}

func (r *stuckJobsReaper) loop() {
	var stuckJob *models.Job
	var err error

	sleepBackOffMinutes := 30
	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	logg.Infof("Starting job reaper")
	for {
		select {
		case <-r.stopChan:
			logg.Infof("Stopping job reaper")
			return
		case <-rateLimiter.C:
			stuckJob, err = models.LastJobLastUpdated(30, models.IN_PROGRESS_JOB)

			if errors.Is(err, gorm.ErrRecordNotFound) {
				rateLimiter.Reset(time.Duration(sleepBackOffMinutes) * time.Minute)
				continue
			}

			if err != nil {
				logg.Errorf("[job reaper] %v", err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			r.requeue(stuckJob)
			rateLimiter.Reset(DefaultTickerDuration)
		}
	}
}

func (r *stuckJobsReaper) requeue(job *models.Job) {
	jobStatus, err := models.FindJobStatus(models.ENQUEUED_JOB)
	if err != nil {
		logg.Error(err)
		return
	}

	err = job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
	})
	if err != nil {
		logg.Errorf("[job reaper] %v", err)
		return
	}

	logg.Infof("[job reaper] job with id=%v requeued", job.ID)
}
