package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

type Job struct {
	BaseModel
	Fails       int        `json:"fails"`
	Name        string     `json:"name"`
	Handler     string     `json:"handler"`
	Args        string     `json:"args"`
	LastError   string     `json:"last_error"`
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	JobStatusID uint       `json:"job_status_id"`
	JobStatus   *JobStatus `json:"status"`
}

// MarkAsClaimed claims the job for a worker, returning false if another
// worker got there first.
func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).
		Updates(map[string]interface{}{
			"claimed":       true,
			"job_status_id": inProgressStatus.ID,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// Update applies the column map by primary key. Jobs are fetched with
// JobStatus preloaded, so updating through the loaded struct would re-save
// the stale association over the map's job_status_id.
func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(&Job{}).Where("id = ?", job.ID).Updates(data).Error
}

// CreateUniqueJobByName enqueues a job unless one with the same name is
// already enqueued or in-progress.
func CreateUniqueJobByName(name string, handler string, args string) error {
	statusIDs := []uint{}
	err := db.Model(&JobStatus{}).Where("name IN ?", []string{ENQUEUED_JOB, IN_PROGRESS_JOB}).
		Pluck("id", &statusIDs).Error
	if err != nil {
		return err
	}

	res := db.Where("name = ? AND job_status_id IN ?", name, statusIDs).First(&Job{})
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return ErrDuplicateJob
	}

	enqueuedStatus, err := FindJobStatus(ENQUEUED_JOB)
	if err != nil {
		return err
	}

	return db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		JobStatusID: enqueuedStatus.ID,
	}).Error
}

// LastJob returns the oldest job with the given status & claim state.
func LastJob(statusName string, claimed bool) (*Job, error) {
	job := Job{}

	err := db.Preload("JobStatus").Joins(
		"INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?",
		statusName).
		Where("claimed = ?", claimed).
		Order("jobs.created_at ASC").
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// LastJobLastUpdated returns the oldest job in the given status that hasn't
// been touched for at least 'minutes' - i.e. a stuck job.
func LastJobLastUpdated(minutes int, statusName string) (*Job, error) {
	job := Job{}

	err := db.Preload("JobStatus").Joins(
		"INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?",
		statusName).
		Where("jobs.updated_at <= ?", time.Now().Add(-time.Duration(minutes)*time.Minute)).
		Order("jobs.updated_at ASC").
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}
