package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// 报告中的 comment 哨兵文本（对外契约，表格与 JSON 共用）。
const (
	CommentExact      = "found as direct search"
	CommentPartial    = "found as partial match"
	CommentSimilar    = "found as similar match"
	CommentAmbiguous  = "multiple search results found - need manual verification"
	CommentNotFound   = "no data found"
	CommentNoDirector = "No Director Details"
	CommentFeatured   = "Found as Featured Results"
)

// 剧集场景下 NotFound 的细分原因。
const (
	CommentEpisodeMissing   = "Season present - Couldn't find particular episode"
	CommentDirectorMismatch = "Season & Episode present - Director not matched"
	CommentSeasonOnly       = "Season Present - Episode & Director not Found"
)

// BatchReport 是一次批量查询的对外稳定输出（report.json / stdout JSON / xlsx 的数据源）。
type BatchReport struct {
	RunID string `json:"run_id"`
	Input string `json:"input"`
	Mode  string `json:"mode"` // "movie" | "series"

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Rows    []ReportRow   `json:"rows"`
}

type ReportSummary struct {
	Found     int `json:"found"`
	Ambiguous int `json:"ambiguous"`
	NotFound  int `json:"not_found"`
	Invalid   int `json:"invalid"`
}

// ReportRow 与输入表格一一对应（Index 为输入顺序，从 0 开始）。
type ReportRow struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Season   string `json:"season,omitempty"`
	Episode  string `json:"episode,omitempty"`
	Director string `json:"director"`

	Outcome Outcome `json:"outcome"`
}

// Comment 返回该行在表格中展示的说明文本（永不为空）。
func (r ReportRow) Comment() string {
	o := r.Outcome
	switch o.Kind {
	case OutcomeFound:
		if o.Featured {
			return CommentFeatured
		}
		switch o.MatchKind {
		case VerdictExact:
			return CommentExact
		case VerdictPartial:
			return CommentPartial
		default:
			return CommentSimilar
		}
	case OutcomeAmbiguous:
		return CommentAmbiguous
	case OutcomeNotFound:
		if o.Comment != "" {
			return o.Comment
		}
		return CommentNotFound
	case OutcomeInvalid:
		if o.Reason != "" {
			return o.Reason
		}
		return CommentNoDirector
	default:
		return NA
	}
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) rows 按输入顺序稳定排序（并发执行时完成顺序不确定）
// 3) summary 由 rows 计算得出
func (r *BatchReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Rows, func(i, j int) bool { return r.Rows[i].Index < r.Rows[j].Index })

	var s ReportSummary
	for _, row := range r.Rows {
		switch row.Outcome.Kind {
		case OutcomeFound:
			s.Found++
		case OutcomeAmbiguous:
			s.Ambiguous++
		case OutcomeNotFound:
			s.NotFound++
		case OutcomeInvalid:
			s.Invalid++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r BatchReport) MarshalJSON() ([]byte, error) {
	type Alias BatchReport
	return json.Marshal(Alias(r))
}
