package domain

import "strings"

// RatingCodeMap 是“分级说明语句 -> 短码”的只读映射（进程级常量值）。
//
// 约束：
// - 构造后不可变；WithOverrides 返回新值，不修改原值
// - 值语义传递，不需要加锁
type RatingCodeMap struct {
	statements map[string]string
	labels     map[string]string
	codes      map[string]struct{}
}

// 分级说明语句（13 条），来自官方分级标签的完整句子。
var defaultStatementCodes = map[string]string{
	"Suitable for general audiences":                                                      "G",
	"Parental guidance recommended for younger viewers":                                   "PG",
	"Suitable for mature audiences":                                                       "M",
	"Unsuitable for audiences under 13 years of age":                                      "13",
	"Restricted to persons 13 years and over":                                             "R13",
	"Restricted to persons 13 years and over unless accompanied by a parent or guardian": "RP13",
	"Restricted to persons 15 years and over":                                             "R15",
	"Unsuitable for audiences under 16 years of age":                                      "16",
	"Restricted to persons 16 years and over":                                             "R16",
	"Restricted to persons 16 years and over unless accompanied by a parent or guardian": "RP16",
	"Unsuitable for audiences under 18 years of age":                                      "18",
	"Restricted to persons 18 years and over":                                             "R18",
	"Restricted to persons 17 years and over unless accompanied by a parent or guardian": "RP18",
}

// 分级标签名（部分 source 只给出标签名而非完整句子）。
var defaultLabelCodes = map[string]string{
	"General":           "G",
	"Parental Guidance": "PG",
	"Mature":            "M",
	"Unrestricted":      "R13",
	"R":                 "R",
	"RP":                "RP",
}

// DefaultRatingCodes 返回内置映射表。
func DefaultRatingCodes() RatingCodeMap {
	return NewRatingCodeMap(defaultStatementCodes, defaultLabelCodes)
}

// NewRatingCodeMap 复制入参构造映射表（调用方之后修改入参不会影响结果）。
// key 会做首尾空白规范化；空 key 或空 code 被忽略。
func NewRatingCodeMap(statements, labels map[string]string) RatingCodeMap {
	m := RatingCodeMap{
		statements: make(map[string]string, len(statements)),
		labels:     make(map[string]string, len(labels)),
		codes:      make(map[string]struct{}, len(statements)+len(labels)),
	}
	m.merge(statements, labels)
	return m
}

// WithOverrides 在当前映射基础上叠加覆盖项，返回新的映射表。
func (m RatingCodeMap) WithOverrides(statements, labels map[string]string) RatingCodeMap {
	out := NewRatingCodeMap(m.statements, m.labels)
	out.merge(statements, labels)
	return out
}

func (m *RatingCodeMap) merge(statements, labels map[string]string) {
	for k, v := range statements {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		m.statements[k] = v
	}
	for k, v := range labels {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		m.labels[k] = v
	}
	m.codes = make(map[string]struct{}, len(m.statements)+len(m.labels))
	for _, v := range m.statements {
		m.codes[v] = struct{}{}
	}
	for _, v := range m.labels {
		m.codes[v] = struct{}{}
	}
}

// Lookup 按完整说明语句查找短码。
func (m RatingCodeMap) Lookup(statement string) (string, bool) {
	code, ok := m.statements[strings.TrimSpace(statement)]
	return code, ok
}

// LookupLabel 按分级标签名查找短码。
func (m RatingCodeMap) LookupLabel(label string) (string, bool) {
	code, ok := m.labels[strings.TrimSpace(label)]
	return code, ok
}

// IsCode 判断 s 是否属于映射表的值集合（即已经是短码）。
func (m RatingCodeMap) IsCode(s string) bool {
	_, ok := m.codes[strings.TrimSpace(s)]
	return ok
}

// Len 返回说明语句条目数。
func (m RatingCodeMap) Len() int { return len(m.statements) }
