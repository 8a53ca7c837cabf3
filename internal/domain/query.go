package domain

import (
	"fmt"
	"strings"
)

// EpisodeContext 描述剧集查询的季/集定位。
// Season 为 0 表示未知（只按集号匹配）。
type EpisodeContext struct {
	Season  int
	Episode int
}

func (e EpisodeContext) String() string {
	if e.Season > 0 {
		return fmt.Sprintf("S%02dE%02d", e.Season, e.Episode)
	}
	return fmt.Sprintf("E%02d", e.Episode)
}

// Query 是一次查询的输入（来自表格的一行）。
//
// 约束：
// - 构造后不可变（只通过 NewQuery 构造，字段不在别处改写）
// - Director 的合法性由调用方在进入 resolve 之前校验；非法查询不会触发任何网络请求
type Query struct {
	Title    string
	Director string
	Episode  *EpisodeContext
}

// NewQuery 规范化首尾空白并复制 EpisodeContext（避免调用方后续修改影响查询）。
func NewQuery(title, director string, ep *EpisodeContext) Query {
	q := Query{
		Title:    strings.TrimSpace(title),
		Director: strings.TrimSpace(director),
	}
	if ep != nil {
		c := *ep
		q.Episode = &c
	}
	return q
}

// IsSeries 表示该查询是否带有季/集上下文。
func (q Query) IsSeries() bool { return q.Episode != nil }

// Label 用于日志与进度输出。
func (q Query) Label() string {
	if q.Episode != nil {
		return q.Title + " " + q.Episode.String()
	}
	return q.Title
}
