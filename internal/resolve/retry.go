package resolve

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxAttempts = 1
	MaxAttemptsLimit   = 5
	DefaultBackoff     = 5 * time.Second
)

// RetryPolicy 是围绕单次 source 调用的有界重试策略。
//
// 规则：
// - 最多执行 MaxAttempts 次（<1 视为 1）
// - 两次尝试之间固定等待 Backoff；最后一次失败后不等待
// - ctx 取消后立即停止，返回最后一次的错误（没有时返回 ctx.Err()）
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Sleep 为空时使用可被 ctx 中断的 timer；测试可注入以避免真实等待。
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy 返回默认策略：1 次尝试，5 秒退避。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff}
}

// Do 执行 fn 直到成功或预算耗尽，返回实际尝试次数与最后一次错误。
// fn 的 attempt 从 1 开始。
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	if fn == nil {
		return 0, errors.New("retry fn 不能为空")
	}
	n := p.MaxAttempts
	if n < 1 {
		n = 1
	}

	var lastErr error
	for attempt := 1; attempt <= n; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempt - 1, lastErr
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if attempt == n {
			break
		}
		if err := p.sleep(ctx, p.Backoff); err != nil {
			return attempt, lastErr
		}
	}
	return n, lastErr
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepWithContext(ctx, d)
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
