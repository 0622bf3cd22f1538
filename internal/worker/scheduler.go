// Package worker は定期ジョブのスケジューリングを提供する。
// 共有コードのクリーンアップやリマインダーチェックをcron式で定期実行する。
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/bptogether/internal/logger"
)

// Task はスケジューラが1回の実行枠で順に実行する処理。
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler はcron式に従ってTaskを定期実行する。
// 前回の実行が終わっていない場合はその回をスキップし、panicは回復してログに記録する。
// 各Taskは独立しており、1つが失敗しても残りのTaskは実行される。
type Scheduler struct {
	spec     string
	location *time.Location
	tasks    []Task
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// cron式はlocのタイムゾーンで解釈する。locがnilの場合はtime.Local、lockerがnilの場合はNopLockerを使用する。
func NewScheduler(spec string, loc *time.Location, tasks []Task, locker Locker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	if locker == nil {
		locker = NopLocker{}
	}
	return &Scheduler{
		spec:     spec,
		location: loc,
		tasks:    tasks,
		locker:   locker,
		lockTTL:  5 * time.Minute,
		logger:   logger,
	}
}

// Next はnowより後で最初に実行される時刻を、スケジューラのタイムゾーンで返す。
func (s *Scheduler) Next(now time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	return sched.Next(now.In(s.location)), nil
}

// Start はスケジューラを起動し、コンテキストがキャンセルされるまで実行を継続する。
// 停止時は実行中のTaskの完了を待つ。
func (s *Scheduler) Start(ctx context.Context) error {
	cl := logger.NewCronLogger(s.logger)
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	next, _ := s.Next(time.Now())
	s.logger.Info("ジョブスケジューラを開始しました",
		slog.String("schedule", s.spec),
		slog.String("timezone", s.location.String()),
		slog.Time("next_run", next),
		slog.Int("task_count", len(s.tasks)),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("ジョブスケジューラを停止しました")
	return nil
}

// RunOnce は全Taskを順に1回実行する。
// ロックを取得できなかった場合は他のワーカーが実行中とみなしてスキップする。
func (s *Scheduler) RunOnce(ctx context.Context) {
	release, ok, err := s.locker.TryLock(ctx, "scan", s.lockTTL)
	if err != nil {
		s.logger.Error("ロックの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	if !ok {
		s.logger.Info("他のワーカーが実行中のためスキップします")
		return
	}
	defer release()

	for _, t := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		if err := t.Run(ctx); err != nil {
			s.logger.Error("ジョブの実行に失敗しました",
				slog.String("task", t.Name),
				slog.String("error", err.Error()),
			)
		}
	}
}
