package provider

import (
	"context"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

// Source 是候选来源适配器：把某个评级站点的页面结构限制在自己的包内部，
// 核心流程只依赖统一的 CandidateRecord。
//
// 约束：
// - key 是本次搜索使用的标题（主键=查询标题；二级键=去年份后的标题）
// - SearchURL 不访问网络，只由 query/key 计算，用于 NotFound/Ambiguous 的追溯
// - Fetch 不做重试、不做匹配（这些由 resolve 统一实现）；候选按站点返回顺序排列
// - Fetch 失败时返回的错误统一视为瞬时错误（计入重试预算）
type Source interface {
	Name() string
	SearchURL(q domain.Query, key string) string
	Fetch(ctx context.Context, q domain.Query, key string) (cands []domain.CandidateRecord, sourceURL string, err error)
}
