package work

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vitalguard/vitalguard/server/models"
)

func TestPerform(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC")

	var mu sync.Mutex
	outputBuffer := new(bytes.Buffer)

	// Register job function
	writeToBuffer := func(m map[string]interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := outputBuffer.WriteString("Hello")
		return err
	}
	err := workerPool.Register("write_to_buffer", writeToBuffer)
	assert.Nil(t, err)

	err = workerPool.Perform(JobParams{
		Name:    "write_to_buffer",
		Handler: "write_to_buffer",
		Args:    map[string]interface{}{},
	})
	assert.Nil(t, err)

	workerPool.Start()

	// Wait for job to be processed
	time.Sleep(2 * time.Second)

	workerPool.Stop()

	mu.Lock()
	outStr := outputBuffer.String()
	mu.Unlock()
	assert.Equal(t, "Hello", outStr, "Expected job to write to outputBuffer")

	// And the job record moved to successful, despite JobStatus being
	// preloaded when the worker claimed it
	done, err := models.LastJob(models.SUCCESSFUL_JOB, false)
	assert.Nil(t, err)
	assert.Equal(t, "write_to_buffer", done.Name)
}

func TestPerformDuplicateJob(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC")

	noop := func(m map[string]interface{}) error { return nil }
	err := workerPool.Register("noop", noop)
	assert.Nil(t, err)

	job := JobParams{
		Name:    "noop",
		Handler: "noop",
		Args:    map[string]interface{}{},
	}

	assert.Nil(t, workerPool.Perform(job))

	// Jobs are unique by name while queued, a duplicate is dropped quietly
	assert.Nil(t, workerPool.Perform(job))

	enqueued, err := models.LastJob(models.ENQUEUED_JOB, false)
	assert.Nil(t, err)
	assert.Equal(t, "noop", enqueued.Name)
}

func TestRemovePeriodicJob(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC")

	job := JobParams{
		Name:    "nightly_noop",
		Handler: "nightly_noop",
		Args:    map[string]interface{}{},
	}

	assert.Nil(t, workerPool.PeriodicallyPerform("0 3 * * *", job))

	// Tags are unique, so re-scheduling under the same name fails until
	// the existing schedule is removed
	assert.NotNil(t, workerPool.PeriodicallyPerform("0 3 * * *", job))

	workerPool.RemovePeriodicJob(job.Name)
	assert.Nil(t, workerPool.PeriodicallyPerform("0 3 * * *", job))
}
