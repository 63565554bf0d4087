// Package workers provides the worker pool for background task processing.
package workers

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"git.uuxo.net/uuxo/fileshare-server/internal/config"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// Task represents a unit of work for the worker pool.
type Task struct {
	Execute func() error
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	tasks      chan Task
	wg         sync.WaitGroup
	quit       chan struct{}
	numWorkers int
}

// NewPool creates a new worker pool.
func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		tasks:      make(chan Task, queueSize),
		quit:       make(chan struct{}),
		numWorkers: numWorkers,
	}
}

// FromConfig creates and starts a pool from configuration.
func FromConfig(cfg *config.WorkersConfig) *Pool {
	p := NewPool(cfg.NumWorkers, cfg.QueueSize)
	p.Start()
	return p
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Infof("Worker pool started with %d workers", p.numWorkers)
}

// Stop signals all workers to stop and waits for completion.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
	log.Info("Worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			if err := task.Execute(); err != nil {
				log.Errorf("Worker %d: task failed: %v", id, err)
			}
		case <-p.quit:
			return
		}
	}
}

// Submit adds a task to the pool. It reports false when the queue is
// full and the task was dropped.
func (p *Pool) Submit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		log.Warn("Worker pool queue full, task dropped")
		return false
	}
}
