// Package matcher 判定候选标题与查询标题的关系，并按“精确优先、其余聚合”的规则挑选候选。
package matcher

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

const (
	StrategySequence = "sequence"
	StrategyTokenSet = "token_set"

	DefaultSimilarityThreshold = 0.85
	DefaultTokenThreshold      = 80
)

// Strategy 是标题比较策略。所有实现必须遵守同一个四值契约：
// Exact（trim + 忽略大小写全等）> Partial（任一方包含另一方）> Similar（策略自定义的模糊分数）> NoMatch。
type Strategy interface {
	Name() string
	Classify(queryTitle, candidateTitle string) domain.Verdict
}

// New 按配置名构造策略。
func New(name string, similarity float64, tokenThreshold int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategySequence:
		if similarity <= 0 {
			similarity = DefaultSimilarityThreshold
		}
		return SequenceStrategy{Threshold: similarity}, nil
	case StrategyTokenSet:
		if tokenThreshold <= 0 {
			tokenThreshold = DefaultTokenThreshold
		}
		return TokenSetStrategy{Threshold: tokenThreshold}, nil
	default:
		return nil, fmt.Errorf("未知匹配策略：%q（只能是 %s 或 %s）", name, StrategySequence, StrategyTokenSet)
	}
}

// classifyLiteral 实现所有策略共享的前两级判定。
// 返回 ok=false 表示需要交给模糊分数判定。
func classifyLiteral(queryTitle, candidateTitle string) (domain.Verdict, bool) {
	q := strings.ToLower(strings.TrimSpace(queryTitle))
	c := strings.ToLower(strings.TrimSpace(candidateTitle))
	if q == "" || c == "" {
		return domain.VerdictNoMatch, true
	}
	if q == c {
		return domain.VerdictExact, true
	}
	if strings.Contains(c, q) || strings.Contains(q, c) {
		return domain.VerdictPartial, true
	}
	return domain.VerdictNoMatch, false
}

// SequenceStrategy 用经典序列相似度（匹配块字符数 * 2 / 总长度）做第三级判定。
type SequenceStrategy struct {
	Threshold float64
}

func (SequenceStrategy) Name() string { return StrategySequence }

func (s SequenceStrategy) Classify(queryTitle, candidateTitle string) domain.Verdict {
	if v, ok := classifyLiteral(queryTitle, candidateTitle); ok {
		return v
	}
	q := strings.ToLower(strings.TrimSpace(queryTitle))
	c := strings.ToLower(strings.TrimSpace(candidateTitle))
	if Ratio(q, c) > s.Threshold {
		return domain.VerdictSimilar
	}
	return domain.VerdictNoMatch
}

// TokenSetStrategy 用 token-set / partial 分数（0-100，取较大者）做第三级判定。
// 分数基于 normalize.Fold 之后的字符串计算。
type TokenSetStrategy struct {
	Threshold int
}

func (TokenSetStrategy) Name() string { return StrategyTokenSet }

func (s TokenSetStrategy) Classify(queryTitle, candidateTitle string) domain.Verdict {
	if v, ok := classifyLiteral(queryTitle, candidateTitle); ok {
		return v
	}
	score := TokenSetRatio(queryTitle, candidateTitle)
	if p := PartialRatio(queryTitle, candidateTitle); p > score {
		score = p
	}
	if score >= s.Threshold {
		return domain.VerdictSimilar
	}
	return domain.VerdictNoMatch
}
