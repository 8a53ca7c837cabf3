package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/ratingscout/internal/batch"
	"github.com/John-Robertt/ratingscout/internal/config"
	"github.com/John-Robertt/ratingscout/internal/domain"
)

var _ batch.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr，不污染 stdout 的 JSON 输出契约
// - 事件驱动：batch 层只发事件，CLI 决定如何展示
// - keepalive：长时间无条目完成时（例如批次间歇、慢页面）也会定期输出一行
type progressUI struct {
	w       io.Writer
	eff     config.EffectiveConfig
	outPath string

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total     int
	done      int
	found     int
	ambiguous int
	notFound  int
	invalid   int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, eff config.EffectiveConfig, outPath string) *progressUI {
	return &progressUI{
		w:                  w,
		eff:                eff,
		outPath:            outPath,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(total int) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	p.total = total

	eff := p.eff
	fmt.Fprintf(p.w, "[%s] ratingscout run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  input: %s\n", eff.Input)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  sources: %s\n", strings.Join(eff.EnabledSources(), " -> "))
	fmt.Fprintf(p.w, "  strategy: %s\n", strategyLabel(eff))
	fmt.Fprintf(p.w, "  retries: %d (backoff %s)\n", eff.MaxRetries, eff.RetryBackoff)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	if eff.PauseEvery > 0 && eff.PauseFor > 0 {
		fmt.Fprintf(p.w, "  pause: every %d for %s\n", eff.PauseEvery, eff.PauseFor)
	}
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  report: %s\n", p.outPath)
	fmt.Fprintf(p.w, "\n查询: total=%d\n\n", total)

	p.lastPrinted = time.Now()
	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnItemDone(done, total int, row domain.ReportRow, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	p.total = total

	o := row.Outcome
	switch o.Kind {
	case domain.OutcomeFound:
		p.found++
	case domain.OutcomeAmbiguous:
		p.ambiguous++
	case domain.OutcomeNotFound:
		p.notFound++
	case domain.OutcomeInvalid:
		p.invalid++
	}

	label := rowLabel(row)
	switch o.Kind {
	case domain.OutcomeFound:
		fmt.Fprintf(p.w, "[%d/%d] %s FOUND %s source=%s match=%s (%s)\n",
			done, total, label, o.Details.RatingCode, o.Source, o.MatchKind, formatShortDuration(dur),
		)
	case domain.OutcomeAmbiguous:
		fmt.Fprintf(p.w, "[%d/%d] %s AMBIGUOUS candidates=%d source=%s (%s)\n",
			done, total, label, o.CandidateCount, o.Source, formatShortDuration(dur),
		)
	case domain.OutcomeInvalid:
		fmt.Fprintf(p.w, "[%d/%d] %s INVALID %s\n", done, total, label, row.Comment())
	default:
		chain := formatAttemptChain(o.Attempts, 2)
		if chain != "" {
			chain = " attempts=" + chain
		}
		fmt.Fprintf(p.w, "[%d/%d] %s NOT_FOUND %s%s (%s)\n",
			done, total, label, row.Comment(), chain, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()
	p.stopTickerIfDoneLocked()
}

func (p *progressUI) OnPause(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "批次间歇：%s\n", d)
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFinish(report domain.BatchReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
	fmt.Fprintf(p.w, "\n耗时: %s\n", formatElapsed(report.FinishedAt.Sub(report.StartedAt)))
}

func (p *progressUI) stopTickerIfDoneLocked() {
	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d found=%d ambiguous=%d not_found=%d invalid=%d elapsed=%s\n",
						p.done, p.total, p.found, p.ambiguous, p.notFound, p.invalid, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func strategyLabel(eff config.EffectiveConfig) string {
	if eff.Strategy == "token_set" {
		return fmt.Sprintf("token_set (>= %d)", eff.TokenThreshold)
	}
	return fmt.Sprintf("%s (> %.2f)", eff.Strategy, eff.SimilarityThreshold)
}

func rowLabel(row domain.ReportRow) string {
	parts := []string{truncate(row.Title, 60)}
	if row.Season != "" && row.Season != row.Title {
		parts = append(parts, truncate(row.Season, 30))
	}
	if row.Episode != "" {
		parts = append(parts, truncate(row.Episode, 30))
	}
	return strings.Join(parts, " / ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatAttemptChain(attempts []domain.Attempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Source) + ":" + strings.TrimSpace(a.Stage)
		if a.Tries > 1 {
			s += fmt.Sprintf("x%d", a.Tries)
		}
		if em := strings.TrimSpace(a.Error); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
