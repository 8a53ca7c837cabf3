package batch

import (
	"time"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

// Observer 用于把“批处理进度/条目结果”从执行流程中解耦出来。
//
// 约束：
// - batch 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Runner 保证事件串行投递，Observer 实现无需自己加锁。
type Observer interface {
	// OnStart 在 Run 开始时调用，total 为输入行数。
	OnStart(total int)
	// OnItemDone 在某一行得到 Outcome 后调用；done 为已完成行数（含本行）。
	OnItemDone(done, total int, row domain.ReportRow, dur time.Duration)
	// OnPause 在批次间歇开始前调用。
	OnPause(d time.Duration)
	// OnFinish 在报告 Finalize 之后调用。
	OnFinish(report domain.BatchReport)
}

type nopObserver struct{}

func (nopObserver) OnStart(int) {}
func (nopObserver) OnItemDone(int, int, domain.ReportRow, time.Duration) {}
func (nopObserver) OnPause(time.Duration) {}
func (nopObserver) OnFinish(domain.BatchReport) {}
