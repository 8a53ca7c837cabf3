package domain

// NA 是所有缺失字段的统一哨兵值（report 中不允许出现空单元格）。
const NA = "N/A"

// OutcomeKind 区分 Outcome 的四种变体。
type OutcomeKind string

const (
	OutcomeFound     OutcomeKind = "found"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
	OutcomeNotFound  OutcomeKind = "not_found"
	OutcomeInvalid   OutcomeKind = "invalid"
)

// Details 是命中后抽取的结构化字段。
// 所有字段先置为 NA，再由抽取逻辑按需覆盖；不存在“部分填充”的结果。
type Details struct {
	Classification string `json:"classification"`
	RatingCode     string `json:"rating_code"`
	ReleaseYear    string `json:"release_year"`
	RunTime        string `json:"run_time"`
	LabelIssuedBy  string `json:"label_issued_by"`
	LabelIssuedOn  string `json:"label_issued_on"`
}

// EmptyDetails 返回全部字段为 NA 的 Details。
func EmptyDetails() Details {
	return Details{
		Classification: NA,
		RatingCode:     NA,
		ReleaseYear:    NA,
		RunTime:        NA,
		LabelIssuedBy:  NA,
		LabelIssuedOn:  NA,
	}
}

// Attempt 记录一次 source 调用（用于解释 fallback/重试原因，写入 report 便于追溯）。
type Attempt struct {
	Source string `json:"source"`
	Key    string `json:"key"`
	Stage  string `json:"stage"` // "fetch" / "not_found" / "ambiguous" / "ok"
	Tries  int    `json:"tries"`
	Error  string `json:"error,omitempty"`
}

const (
	StageFetch     = "fetch"
	StageNotFound  = "not_found"
	StageAmbiguous = "ambiguous"
	StageOK        = "ok"
)

// Outcome 是一次查询的最终结果（tagged union，由 Kind 决定哪些字段有意义）。
//
// 不变量：
// - 每个查询恰好产生一个 Outcome
// - Found 必须带 SourceURL（可追溯）
// - Details.RatingCode 要么是映射表中的短码，要么是 NA
// - 非 Found 变体的 Details 全部为 NA
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	Source    string `json:"source"`
	SourceURL string `json:"source_url"`

	Details      Details `json:"details"`
	MatchKind    Verdict `json:"match_kind"`
	MatchedTitle string  `json:"matched_title"`
	Featured     bool    `json:"featured,omitempty"`

	CandidateCount int    `json:"candidate_count"`
	Reason         string `json:"reason"`
	Comment        string `json:"comment"`

	Attempts []Attempt `json:"attempts"`
}

// Found 构造命中结果。d 中的空字段会被降级为 NA。
func Found(source, sourceURL string, d Details, kind Verdict, matchedTitle string) Outcome {
	if sourceURL == "" {
		sourceURL = NA
	}
	return Outcome{
		Kind:         OutcomeFound,
		Source:       source,
		SourceURL:    sourceURL,
		Details:      fillNA(d),
		MatchKind:    kind,
		MatchedTitle: matchedTitle,
		Attempts:     []Attempt{},
	}
}

// Ambiguous 构造“多候选需人工核对”的结果。
func Ambiguous(source, sourceURL string, count int) Outcome {
	return Outcome{
		Kind:           OutcomeAmbiguous,
		Source:         source,
		SourceURL:      sourceURL,
		Details:        EmptyDetails(),
		CandidateCount: count,
		Attempts:       []Attempt{},
	}
}

// NotFound 构造“所有 source 都未命中”的结果；comment 可为空（剧集场景用于说明缺失原因）。
func NotFound(source, sourceURL, comment string) Outcome {
	return Outcome{
		Kind:      OutcomeNotFound,
		Source:    source,
		SourceURL: sourceURL,
		Details:   EmptyDetails(),
		Comment:   comment,
		Attempts:  []Attempt{},
	}
}

// Invalid 构造前置条件失败的结果（不会发起任何 source 调用）。
func Invalid(reason string) Outcome {
	return Outcome{
		Kind:     OutcomeInvalid,
		Details:  EmptyDetails(),
		Reason:   reason,
		Attempts: []Attempt{},
	}
}

func fillNA(d Details) Details {
	out := d
	for _, f := range []*string{
		&out.Classification,
		&out.RatingCode,
		&out.ReleaseYear,
		&out.RunTime,
		&out.LabelIssuedBy,
		&out.LabelIssuedOn,
	} {
		if *f == "" {
			*f = NA
		}
	}
	return out
}
