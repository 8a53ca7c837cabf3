package matcher

import (
	"math"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/John-Robertt/ratingscout/internal/normalize"
)

// Ratio 返回 a/b 的序列相似度（0.0-1.0），按 rune 比较，对称。
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	ra, rb := splitRunes(a), splitRunes(b)
	// 以较短者为 a，保证 Ratio(a,b) == Ratio(b,a)（autojunk 只作用于 b）。
	if len(ra) > len(rb) || (len(ra) == len(rb) && a > b) {
		ra, rb = rb, ra
	}
	return difflib.NewMatcher(ra, rb).Ratio()
}

// TokenSetRatio 计算 token-set 分数（0-100）：
// 交集与两侧差集分别排序拼接后两两比较，取最大值。
func TokenSetRatio(a, b string) int {
	ta := tokenSet(normalize.Fold(a))
	tb := tokenSet(normalize.Fold(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(inter, " ")
	combA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := 0
	if sect != "" {
		best = maxInt(best, score(Ratio(sect, combA)))
		best = maxInt(best, score(Ratio(sect, combB)))
	}
	return maxInt(best, score(Ratio(combA, combB)))
}

// PartialRatio 计算最佳子串分数（0-100）：
// 用较短串与较长串中等长窗口比较，窗口起点由匹配块对齐。
func PartialRatio(a, b string) int {
	a, b = normalize.Fold(a), normalize.Fold(b)
	if a == "" || b == "" {
		return 0
	}
	short, long := splitRunes(a), splitRunes(b)
	if len(short) > len(long) {
		short, long = long, short
	}

	m := difflib.NewMatcher(short, long)
	best := 0.0
	for _, blk := range m.GetMatchingBlocks() {
		start := blk.B - blk.A
		if start < 0 {
			start = 0
		}
		end := start + len(short)
		if end > len(long) {
			end = len(long)
		}
		r := difflib.NewMatcher(short, long[start:end]).Ratio()
		if r > 0.995 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return score(best)
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(s) {
		out[f] = struct{}{}
	}
	return out
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func score(r float64) int { return int(math.Round(r * 100)) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
