package provider

import (
	"fmt"
	"strings"
)

// 固定的回退顺序：Source A（分级办公室）-> Source B（FVLB）。
const (
	NameClassOffice = "classoffice"
	NameFVLB        = "fvlb"
)

var fallbackOrder = []string{NameClassOffice, NameFVLB}

// Registry 是 source 的只读注册表（按 name 索引）。
// 用 map 做 O(1) 查找；source 数量极小，保持简单即可。
type Registry struct {
	byName map[string]Source
}

func NewRegistry(sources ...Source) (Registry, error) {
	byName := make(map[string]Source, len(sources))
	for _, s := range sources {
		if s == nil {
			return Registry{}, fmt.Errorf("source 不能为空")
		}
		name := normName(s.Name())
		if name == "" {
			return Registry{}, fmt.Errorf("source.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 source：%q", name)
		}
		byName[name] = s
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Source, bool) {
	if r.byName == nil {
		return nil, false
	}
	s, ok := r.byName[normName(name)]
	return s, ok
}

// Order 按固定回退顺序返回被启用的 source。
//
// 规则：
// - enabled 为空表示全部启用
// - enabled 中出现未知名字 => 报错（通常是配置拼写错误）
// - 启用但未注册的 source 被跳过
func (r Registry) Order(enabled []string) ([]Source, error) {
	want := make(map[string]bool, len(enabled))
	for _, n := range enabled {
		n = normName(n)
		if !knownName(n) {
			return nil, fmt.Errorf("未知 source：%q", n)
		}
		want[n] = true
	}

	out := make([]Source, 0, len(fallbackOrder))
	for _, name := range fallbackOrder {
		if len(want) > 0 && !want[name] {
			continue
		}
		if s, ok := r.Get(name); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("无可用 source")
	}
	return out, nil
}

func knownName(n string) bool {
	for _, k := range fallbackOrder {
		if k == n {
			return true
		}
	}
	return false
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
