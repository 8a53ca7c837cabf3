package domain

// CandidateRecord 是 source 针对一次查询返回的原始候选条目（已经从 HTML 结构化）。
//
// 约束：
// - 只在一次 source 调用内存活，不做缓存
// - 不同 source 字段覆盖不一致：缺失字段保持空串，由 normalize 统一降级为 "N/A"
type CandidateRecord struct {
	Title               string
	DirectorText        string
	RatingStatement     string
	ClassificationLabel string
	TableLines          []string
	// Featured 表示该条目出现在 source 的 "Featured Results" 区块下（目前只有 Source A 会标记）。
	Featured bool
}
