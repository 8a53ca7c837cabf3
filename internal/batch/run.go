// Package batch 逐行驱动解析引擎，并把结果汇总为 BatchReport。
package batch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/ratingscout/internal/domain"
	"github.com/John-Robertt/ratingscout/internal/normalize"
	"github.com/John-Robertt/ratingscout/internal/sheet"
)

// Resolver 是单条查询的解析入口（resolve.Engine 实现它）。
type Resolver interface {
	Resolve(ctx context.Context, q domain.Query) domain.Outcome
}

// Runner 负责批处理调度。
//
// 规则：
// - 导演名不合法的行在进入引擎之前就被短路为 Invalid（不触发任何网络请求）
// - 每 PauseEvery 条进入引擎的查询之后暂停 PauseFor（0 表示不暂停）
// - Pace 非空时，每条进入引擎的查询都先等待令牌
// - 报告行数恒等于输入行数，且按输入顺序排列
type Runner struct {
	Resolver   Resolver
	Workers    int
	Pace       *rate.Limiter
	PauseEvery int
	PauseFor   time.Duration
	Observer   Observer

	// Sleep 用于批次间歇；为空时使用可被 ctx 取消的 timer。
	Sleep func(ctx context.Context, d time.Duration) error
	// Now 便于测试固定时间；为空时使用 time.Now。
	Now func() time.Time
}

// Run 执行一批查询并返回已 Finalize 的报告。
// 报告的 RunID/Input/Mode 由调用方填写。
func (r Runner) Run(ctx context.Context, rows []sheet.Row) domain.BatchReport {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	obs := r.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	report := domain.BatchReport{
		StartedAt: now(),
		Rows:      make([]domain.ReportRow, 0, len(rows)),
	}
	total := len(rows)
	obs.OnStart(total)

	var (
		mu   sync.Mutex
		done int
	)
	record := func(row sheet.Row, out domain.Outcome, dur time.Duration) {
		rr := reportRow(row, out)
		mu.Lock()
		defer mu.Unlock()
		done++
		report.Rows = append(report.Rows, rr)
		obs.OnItemDone(done, total, rr, dur)
	}

	// 只在调度 goroutine 中使用 errgroup 的 Go/Wait；单行失败不会取消其他行。
	var g errgroup.Group
	g.SetLimit(workers)

	dispatched := 0
	for i, row := range rows {
		q := row.Query()
		if !validRow(q) {
			record(row, domain.Invalid(domain.CommentNoDirector), 0)
			continue
		}

		if err := r.wait(ctx, sleep, obs, dispatched); err != nil {
			// ctx 已取消：剩余行仍然各自产生一个 Outcome，导演非法的行依旧是 Invalid。
			for _, rest := range rows[i:] {
				record(rest, undispatched(rest, err), 0)
			}
			break
		}
		dispatched++

		g.Go(func() error {
			started := time.Now()
			out := r.Resolver.Resolve(ctx, q)
			record(row, out, time.Since(started))
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = now()
	report.Finalize()
	obs.OnFinish(report)
	return report
}

// wait 在派发第 dispatched+1 条查询之前执行批次间歇与限速。
func (r Runner) wait(ctx context.Context, sleep func(context.Context, time.Duration) error, obs Observer, dispatched int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.PauseEvery > 0 && r.PauseFor > 0 && dispatched > 0 && dispatched%r.PauseEvery == 0 {
		obs.OnPause(r.PauseFor)
		if err := sleep(ctx, r.PauseFor); err != nil {
			return err
		}
	}
	if r.Pace != nil {
		if err := r.Pace.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func reportRow(row sheet.Row, out domain.Outcome) domain.ReportRow {
	return domain.ReportRow{
		Index:    row.Index,
		Title:    row.Title,
		Season:   row.Season,
		Episode:  row.Episode,
		Director: row.Director,
		Outcome:  out,
	}
}

func validRow(q domain.Query) bool { return normalize.ValidDirectorName(q.Director) }

func undispatched(row sheet.Row, err error) domain.Outcome {
	if !validRow(row.Query()) {
		return domain.Invalid(domain.CommentNoDirector)
	}
	out := domain.NotFound("", domain.NA, "")
	out.Attempts = append(out.Attempts, domain.Attempt{
		Key:   row.Title,
		Stage: domain.StageFetch,
		Error: err.Error(),
	})
	return out
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
