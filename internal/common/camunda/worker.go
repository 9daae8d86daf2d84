// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"devmatch-workers/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type HandlerFunc func(client worker.JobClient, job entities.Job)

type Worker struct {
	worker   worker.JobWorker
	taskType string
}

// Open starts a job worker for taskType. Disabled workers are skipped and
// reported by returning false.
func (c *Client) Open(taskType string, wcfg config.WorkerConfig, handler HandlerFunc) bool {
	if !wcfg.Enabled {
		c.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	jobWorker := c.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	c.workers = append(c.workers, &Worker{worker: jobWorker, taskType: taskType})
	c.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

func (w *Worker) Stop() {
	w.worker.Close()
	w.worker.AwaitClose()
}
