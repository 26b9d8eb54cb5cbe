// Package scheduler はワーカーの定期ジョブ実行を提供する。
// 予約公開とトレンドスコア再計算をティッカーで回す。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job はスケジューラが1ティックごとに実行する処理。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler は登録されたジョブを一定間隔で並列実行する。
// semaphoreパターンで最大並列数を制御する。
type Scheduler struct {
	jobs           []Job
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はジョブ数を上限とする。
func NewScheduler(logger *slog.Logger, maxConcurrency int, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = len(jobs)
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Scheduler{
		jobs:           jobs,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("job_count", len(s.jobs)),
	)

	// 起動直後に1回実行
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スケジューラを停止しました")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("ジョブサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全ジョブを1回ずつ並列に実行し、全ての完了を待つ。
// 失敗したジョブのエラーをまとめて返す。1つの失敗は他のジョブを止めない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	sem := make(chan struct{}, s.maxConcurrency)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, job := range s.jobs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := j.Run(ctx); err != nil {
				s.logger.Error("ジョブの実行に失敗しました",
					slog.String("job", j.Name()),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", j.Name(), err))
				mu.Unlock()
			}
		}(job)
	}

	wg.Wait()

	s.logger.Debug("ジョブサイクルが完了しました",
		slog.Int("job_count", len(s.jobs)),
		slog.Int("failed", len(errs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return errors.Join(errs...)
}

// funcJob は関数をJobとして扱うアダプタ。
type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// NewJob は名前付きの関数からJobを作る。
func NewJob(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}
