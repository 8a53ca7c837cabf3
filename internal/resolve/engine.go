// Package resolve 实现单个查询的解析状态机：
// Start -> 查询 Source A -> {命中 | 歧义 | 未命中} -> [未命中 -> 查询 Source B -> ...] -> 终态。
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/John-Robertt/ratingscout/internal/domain"
	"github.com/John-Robertt/ratingscout/internal/matcher"
	"github.com/John-Robertt/ratingscout/internal/normalize"
	"github.com/John-Robertt/ratingscout/internal/provider"
)

const (
	ReasonBadDirector = "bad director name"
	ReasonEmptyTitle  = "empty title"

	DefaultFetchTimeout = 30 * time.Second
)

// Engine 把 source、匹配策略、短码映射与重试策略组合成一次完整的解析。
//
// 约束：
// - Resolve 永远不返回 error；所有路径都落到一个 Outcome
// - 只有 NotFound 会触发回退到下一个 source；Ambiguous 直接终止
// - 回退后的 source 只用主键查询一次
// - Engine 本身无可变状态，可被多个 goroutine 同时使用（前提是 Sources 的实现并发安全）
type Engine struct {
	Sources []provider.Source
	Matcher matcher.Strategy
	Codes   domain.RatingCodeMap
	Retry   RetryPolicy

	// FetchTimeout 限制单次 source 调用（含详情页跟进）；<=0 表示不额外限制。
	FetchTimeout time.Duration
	// SecondaryKey 为 true 时，首个 source 主键未命中会用去掉尾部年份的标题再查一次。
	SecondaryKey bool

	Logger *slog.Logger
}

// Resolve 解析一个查询。
func (e *Engine) Resolve(ctx context.Context, q domain.Query) domain.Outcome {
	if strings.TrimSpace(q.Title) == "" {
		return domain.Invalid(ReasonEmptyTitle)
	}
	if !normalize.ValidDirectorName(q.Director) {
		return domain.Invalid(ReasonBadDirector)
	}

	log := e.logger().With(slog.String("title", q.Label()))
	strategy := e.Matcher
	if strategy == nil {
		strategy = matcher.SequenceStrategy{Threshold: matcher.DefaultSimilarityThreshold}
	}

	attempts := []domain.Attempt{}
	var (
		lastSource string
		lastURL    string
		hint       string
	)

	for i, src := range e.Sources {
		name := src.Name()
		for _, key := range e.searchKeys(q, i == 0) {
			if ctx.Err() != nil {
				break
			}
			lastSource = name
			lastURL = src.SearchURL(q, key)

			cands, u, tries, err := e.fetch(ctx, log, src, q, key)
			if u != "" {
				lastURL = u
			}
			if err != nil {
				// 重试耗尽等同于该 source 未命中。
				attempts = append(attempts, domain.Attempt{Source: name, Key: key, Stage: domain.StageFetch, Tries: tries, Error: err.Error()})
				log.Warn("source 抓取失败，视为未命中", slog.String("source", name), slog.String("key", key), slog.Int("tries", tries), slog.Any("error", err))
				continue
			}

			mq := q
			if key != q.Title {
				mq = domain.NewQuery(key, q.Director, q.Episode)
			}
			sel := matcher.Select(strategy, mq, cands)

			switch sel.Kind {
			case matcher.SelectMatch:
				attempts = append(attempts, domain.Attempt{Source: name, Key: key, Stage: domain.StageOK, Tries: tries})
				out := domain.Found(name, lastURL, e.extract(sel.Candidate), sel.Verdict, sel.Candidate.Title)
				out.Featured = sel.Featured
				out.Attempts = attempts
				log.Debug("命中", slog.String("source", name), slog.String("match_kind", sel.Verdict.String()))
				return out
			case matcher.SelectAmbiguous:
				attempts = append(attempts, domain.Attempt{Source: name, Key: key, Stage: domain.StageAmbiguous, Tries: tries})
				out := domain.Ambiguous(name, lastURL, sel.Count)
				out.Attempts = attempts
				log.Info("多个候选，需人工核对", slog.String("source", name), slog.Int("candidates", sel.Count))
				return out
			default:
				attempts = append(attempts, domain.Attempt{Source: name, Key: key, Stage: domain.StageNotFound, Tries: tries})
				if hint == "" {
					hint = sel.Hint
				}
			}
		}
		log.Debug("source 未命中", slog.String("source", name))
	}

	out := domain.NotFound(lastSource, lastURL, hint)
	out.Attempts = attempts
	return out
}

// searchKeys 返回对同一 source 依次尝试的搜索键（主键在前）；次键只用于首个 source。
func (e *Engine) searchKeys(q domain.Query, first bool) []string {
	keys := []string{q.Title}
	if !e.SecondaryKey || !first {
		return keys
	}
	if ck := normalize.CleanTitle(q.Title); ck != "" && !strings.EqualFold(ck, strings.TrimSpace(q.Title)) {
		keys = append(keys, ck)
	}
	return keys
}

func (e *Engine) fetch(ctx context.Context, log *slog.Logger, src provider.Source, q domain.Query, key string) (cands []domain.CandidateRecord, sourceURL string, tries int, err error) {
	tries, err = e.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		callCtx := ctx
		if e.FetchTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.FetchTimeout)
			defer cancel()
		}
		c, u, ferr := src.Fetch(callCtx, q, key)
		if u != "" {
			sourceURL = u
		}
		if ferr != nil {
			log.Warn("source 调用失败", slog.String("source", src.Name()), slog.Int("attempt", attempt), slog.Any("error", ferr))
			return ferr
		}
		cands = c
		return nil
	})
	return cands, sourceURL, tries, err
}

// extract 从命中的候选生成 Details：先全部置 NA，再按字段覆盖。
func (e *Engine) extract(c domain.CandidateRecord) domain.Details {
	d := domain.EmptyDetails()

	classification := c.ClassificationLabel
	if strings.TrimSpace(classification) == "" {
		classification = c.RatingStatement
	}
	d.Classification = normalize.OrNA(classification)
	d.RatingCode = normalize.ResolveRatingCode(e.Codes, c.RatingStatement, c.ClassificationLabel)
	d.ReleaseYear = normalize.ExtractReleaseYear(c.DirectorText)

	tf := normalize.ExtractTableFields(c.TableLines)
	d.RunTime = tf.RunTime
	d.LabelIssuedBy = tf.LabelIssuedBy
	d.LabelIssuedOn = tf.LabelIssuedOn
	return d
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
