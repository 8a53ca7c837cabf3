package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold 用于模糊匹配前的标题规范化：
// 去掉变音符号（é -> e）、case fold、标点替换为空格、折叠空白。
//
// 注意：Exact/Partial 判定不使用 Fold（只做 trim + 小写），避免放宽“精确”的含义。
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// Caser 有内部状态，不能跨 goroutine 共享。
	out = cases.Fold().String(out)
	out = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, out)
	return CollapseSpace(out)
}
