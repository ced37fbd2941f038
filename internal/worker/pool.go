package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"igtail/pkg/logger"
	"igtail/pkg/models"
)

// Job asks for one target account to be collected.
type Job struct {
	Username string
}

// Result represents the result of a collect job
type Result struct {
	Job      Job
	Data     *models.CollectedData
	Error    error
	Duration time.Duration
}

// Collector runs a full collection, including failover.
type Collector interface {
	Run(ctx context.Context, username string) (*models.CollectedData, error)
}

// ResultSink stores finished collections.
type ResultSink interface {
	Save(username string, data *models.CollectedData) error
}

// Checkpointer records progress for incremental runs.
type Checkpointer interface {
	Record(username string, data *models.CollectedData) error
}

// WorkerPool runs collect jobs concurrently against shared proxy and
// account pools.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	collector   Collector
	sink        ResultSink
	checkpoints Checkpointer
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx. checkpoints may be nil.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	collector Collector,
	sink ResultSink,
	checkpoints Checkpointer,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		collector:   collector,
		sink:        sink,
		checkpoints: checkpoints,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs to finish and closes Results.
func (wp *WorkerPool) Stop() {
	wp.logger.Info("Stopping worker pool...")

	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Info("Worker pool stopped")
}

// Cancel aborts running jobs. Stop must still be called.
func (wp *WorkerPool) Cancel() {
	wp.cancel()
}

// Submit adds a new job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"username": job.Username,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel. It must be drained while jobs run.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			wp.resultQueue <- Result{Job: job, Error: wp.ctx.Err()}
			continue
		}
		wp.resultQueue <- wp.processJob(job, id)
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"username":  job.Username,
	})

	data, err := wp.collector.Run(wp.ctx, job.Username)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		wp.logger.ErrorWithFields("Worker failed to collect", map[string]interface{}{
			"worker_id": workerID,
			"username":  job.Username,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}
	result.Data = data

	if err := wp.sink.Save(job.Username, data); err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		wp.logger.ErrorWithFields("Worker failed to save result", map[string]interface{}{
			"worker_id": workerID,
			"username":  job.Username,
			"error":     err.Error(),
		})
		return result
	}

	if wp.checkpoints != nil {
		if err := wp.checkpoints.Record(job.Username, data); err != nil {
			wp.logger.WarnWithFields("Worker failed to update checkpoint", map[string]interface{}{
				"worker_id": workerID,
				"username":  job.Username,
				"error":     err.Error(),
			})
		}
	}

	result.Duration = time.Since(start)
	wp.logger.DebugWithFields("Worker completed job successfully", map[string]interface{}{
		"worker_id": workerID,
		"username":  job.Username,
		"duration":  result.Duration,
	})
	return result
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// RunAll collects every username with the pool and returns the results in
// input order.
func RunAll(ctx context.Context, numWorkers int, usernames []string, collector Collector, sink ResultSink, checkpoints Checkpointer, log logger.Logger) []Result {
	pool := NewWorkerPool(ctx, numWorkers, collector, sink, checkpoints, log)
	pool.Start()

	index := make(map[string][]int, len(usernames))
	for i, u := range usernames {
		index[u] = append(index[u], i)
	}
	results := make([]Result, len(usernames))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range pool.Results() {
			positions := index[r.Job.Username]
			if len(positions) == 0 {
				continue
			}
			results[positions[0]] = r
			index[r.Job.Username] = positions[1:]
		}
	}()

	for _, u := range usernames {
		if err := pool.Submit(Job{Username: u}); err != nil {
			break
		}
	}
	pool.Stop()
	<-done

	for i, u := range usernames {
		if results[i].Job.Username == "" {
			results[i] = Result{Job: Job{Username: u}, Error: ctx.Err()}
		}
	}
	return results
}
