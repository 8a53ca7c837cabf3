package domain

// Verdict 是单个候选标题与查询标题的比较结果。
type Verdict int

const (
	VerdictNoMatch Verdict = iota
	VerdictExact
	VerdictPartial
	VerdictSimilar
)

// Matchable 表示该 verdict 是否属于“可匹配”类别（Exact/Partial/Similar）。
func (v Verdict) Matchable() bool {
	return v == VerdictExact || v == VerdictPartial || v == VerdictSimilar
}

func (v Verdict) String() string {
	switch v {
	case VerdictExact:
		return "exact"
	case VerdictPartial:
		return "partial"
	case VerdictSimilar:
		return "similar"
	default:
		return "no_match"
	}
}

// MarshalText 让 verdict 在 JSON report 中输出为稳定字符串。
func (v Verdict) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText 是 MarshalText 的逆操作；未知值解析为 no_match。
func (v *Verdict) UnmarshalText(b []byte) error {
	switch string(b) {
	case "exact":
		*v = VerdictExact
	case "partial":
		*v = VerdictPartial
	case "similar":
		*v = VerdictSimilar
	default:
		*v = VerdictNoMatch
	}
	return nil
}
