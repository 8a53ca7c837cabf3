// Package normalize 提供把 source 原始文本规范化为 report 字段的纯函数。
//
// 约束：所有函数都是纯函数，不抛错；无法抽取时统一返回 domain.NA。
package normalize

import (
	"regexp"
	"strings"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

// 表格中的字段标记（值在标记的下一行）。
const (
	MarkerRunningTime   = "Running time:"
	MarkerLabelIssuedBy = "Label issued by:"
	MarkerLabelIssuedOn = "Label issued on:"
)

// TableFields 是从 rating-result 表格行中抽取的字段。
type TableFields struct {
	RunTime       string
	LabelIssuedBy string
	LabelIssuedOn string
}

// MapRatingToCode 按完整说明语句查找短码；不存在时原样返回输入。
// 对已经是短码的输入是幂等的（短码不会作为 key 再次映射）。
func MapRatingToCode(m domain.RatingCodeMap, statement string) string {
	if code, ok := m.Lookup(statement); ok {
		return code
	}
	return statement
}

// ResolveRatingCode 为 report 生成最终短码：
// 1) 说明语句映射
// 2) 分级标签映射
// 3) 标签本身已经是短码
// 都不满足时返回 NA（保证 rating_code 只会是短码或 NA）。
func ResolveRatingCode(m domain.RatingCodeMap, statement, label string) string {
	if code := MapRatingToCode(m, statement); m.IsCode(code) {
		return code
	}
	if code, ok := m.LookupLabel(label); ok {
		return code
	}
	if m.IsCode(label) {
		return strings.TrimSpace(label)
	}
	return domain.NA
}

// ExtractTableFields 逐行扫描三个标记；命中第 i 行时取第 i+1 行（trim）为值。
// 标记缺失、下一行不存在或为空时，该字段为 NA。
func ExtractTableFields(lines []string) TableFields {
	out := TableFields{
		RunTime:       domain.NA,
		LabelIssuedBy: domain.NA,
		LabelIssuedOn: domain.NA,
	}
	for i, line := range lines {
		var dst *string
		switch {
		case strings.Contains(line, MarkerRunningTime):
			dst = &out.RunTime
		case strings.Contains(line, MarkerLabelIssuedBy):
			dst = &out.LabelIssuedBy
		case strings.Contains(line, MarkerLabelIssuedOn):
			dst = &out.LabelIssuedOn
		default:
			continue
		}
		if i+1 >= len(lines) {
			continue
		}
		if v := strings.TrimSpace(lines[i+1]); v != "" {
			*dst = v
		}
	}
	return out
}

var yearRE = regexp.MustCompile(`^(18|19|20)[0-9]{2}$`)

// ExtractReleaseYear 从 "2010, Directed by Jane Smith" 这类导演行中取年份。
//
// 规则：
// - 不含逗号：NA
// - 含逗号：优先返回第一个形如 4 位年份的逗号分段
// - 没有年份分段：返回第一个逗号之前的分段（trim），保留数据源的历史约定
func ExtractReleaseYear(directorText string) string {
	if !strings.Contains(directorText, ",") {
		return domain.NA
	}
	parts := strings.Split(directorText, ",")
	for _, p := range parts {
		if p = strings.TrimSpace(p); yearRE.MatchString(p) {
			return p
		}
	}
	if first := strings.TrimSpace(parts[0]); first != "" {
		return first
	}
	return domain.NA
}

var (
	trailingParenYearRE = regexp.MustCompile(`\s*\(\s*[0-9]{4}\s*\)\s*$`)
	trailingNumberRE    = regexp.MustCompile(`\s+[0-9]{4}\s*$`)
)

// CleanTitle 去掉末尾的 "(2002)" 或裸的 4 位数字，并折叠空白。
// 只作为二次搜索 key 使用，不参与主比较。
func CleanTitle(title string) string {
	collapsed := CollapseSpace(title)
	s := trailingParenYearRE.ReplaceAllString(collapsed, "")
	if s == collapsed {
		s = trailingNumberRE.ReplaceAllString(collapsed, "")
	}
	s = CollapseSpace(s)
	if s == "" {
		// 标题本身就是年份（例如 "1917"）：不做裁剪。
		return collapsed
	}
	return s
}

var directorNameRE = regexp.MustCompile(`^[A-Za-z ]+$`)

// ValidDirectorName 判断导演名是否可用于查询：非空，且只包含英文字母与空格。
func ValidDirectorName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return directorNameRE.MatchString(name)
}

var runtimeRE = regexp.MustCompile(`([0-9]+)\s*min`)

// ExtractRuntime 把 "This title has a runtime of 98 minutes." 规范化为 "98 minutes"。
func ExtractRuntime(text string) string {
	m := runtimeRE.FindStringSubmatch(text)
	if len(m) < 2 {
		return domain.NA
	}
	return m[1] + " minutes"
}

// TrimDirectedBy 去掉 "Directed by " 前缀。
func TrimDirectedBy(text string) string {
	s := CollapseSpace(text)
	if len(s) >= len("Directed by ") && strings.EqualFold(s[:len("Directed by ")], "Directed by ") {
		s = s[len("Directed by "):]
	}
	return strings.TrimSpace(s)
}

// CollapseSpace 把连续空白折叠为单个空格并去掉首尾空白。
func CollapseSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// OrNA 把空串降级为 NA。
func OrNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return domain.NA
	}
	return s
}
