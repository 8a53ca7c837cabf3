package matcher

import "strings"

// DirectorMatches 判断查询导演名（小写）是否是候选导演字段（小写）的子串。
// 空查询导演永远不匹配。
func DirectorMatches(queryDirector, candidateDirectorText string) bool {
	d := strings.ToLower(strings.TrimSpace(queryDirector))
	if d == "" {
		return false
	}
	return strings.Contains(strings.ToLower(candidateDirectorText), d)
}
