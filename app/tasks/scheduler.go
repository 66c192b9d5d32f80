package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/khabar/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultTaskTimeout = 30 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

type runningTask struct {
	task      TaskInterface
	startedAt time.Time
	cancel    context.CancelFunc
}

// Scheduler polls the RSS settings on a ticker and runs background tasks on
// a worker pool. RSS passes run through a single-flight guard.
type Scheduler struct {
	rssRepo     database.RSSRepository
	newRSSPass  func() TaskInterface
	interval    time.Duration
	workerCount int
	taskTimeout time.Duration
	now         func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	rssFlight Flight

	mu      sync.Mutex
	stopped bool
	running map[string]*runningTask
}

func NewScheduler(rssRepo database.RSSRepository, newRSSPass func() TaskInterface, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		rssRepo:     rssRepo,
		newRSSPass:  newRSSPass,
		interval:    interval,
		workerCount: max(workerCount, 1),
		taskTimeout: defaultTaskTimeout,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		running:     make(map[string]*runningTask),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkRSS()
			}
		}
	}()

	slog.Debug("Scheduler started", "workers", s.workerCount, "interval", s.interval)
}

// Stop cancels running tasks and waits for every goroutine to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// TriggerRSS starts an RSS pass unless one is already running. It reports
// whether a pass was started.
func (s *Scheduler) TriggerRSS() bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	started := s.rssFlight.TryGo(func() {
		defer s.wg.Done()
		s.executeTask(-1, s.newRSSPass())
	})
	if !started {
		s.wg.Done()
		slog.Debug("RSS pass already running, skipping")
	}

	return started
}

func (s *Scheduler) RSSRunning() bool {
	return s.rssFlight.Running()
}

// Running lists executing tasks, oldest first.
func (s *Scheduler) Running() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	jobs := make([]JobInfo, 0, len(s.running))
	for _, rt := range s.running {
		jobs = append(jobs, s.jobInfo(rt, now))
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.Before(jobs[j].StartedAt) })
	return jobs
}

// CancelOlderThan cancels every task that has been running for at least d
// and returns the cancelled tasks.
func (s *Scheduler) CancelOlderThan(d time.Duration) []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var cancelled []JobInfo
	for _, rt := range s.running {
		if now.Sub(rt.startedAt) < d {
			continue
		}
		rt.cancel()
		info := s.jobInfo(rt, now)
		cancelled = append(cancelled, info)

		slog.Warn("Slow task cancelled", "type", string(info.Type), "id", info.ID, "duration", info.Duration)
	}
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i].StartedAt.Before(cancelled[j].StartedAt) })
	return cancelled
}

func (s *Scheduler) jobInfo(rt *runningTask, now time.Time) JobInfo {
	return JobInfo{
		ID:        rt.task.GetID(),
		Type:      rt.task.GetType(),
		Target:    rt.task.GetTarget(),
		StartedAt: rt.startedAt,
		Duration:  now.Sub(rt.startedAt),
	}
}

func (s *Scheduler) checkRSS() {
	settings, err := s.rssRepo.GetSettings(s.ctx)
	if err != nil {
		slog.Error("Failed to read RSS settings", "error", err)
		return
	}

	if settings == nil || !settings.IsDue(s.now()) {
		return
	}

	s.TriggerRSS()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) track(task TaskInterface, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[task.GetID()] = &runningTask{task: task, startedAt: s.now(), cancel: cancel}
}

func (s *Scheduler) untrack(task TaskInterface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, task.GetID())
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	s.track(task, cancel)

	err := task.Execute(taskCtx)

	s.untrack(task)
	cancel()

	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
