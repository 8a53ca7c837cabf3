package matcher

import (
	"fmt"
	"regexp"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectMatch
	SelectAmbiguous
)

func (k SelectionKind) String() string {
	switch k {
	case SelectMatch:
		return "match"
	case SelectAmbiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// Selection 是一次候选挑选的结果。
//
// 约束：
// - Kind=match 时 Candidate/Verdict 有效，Count=1
// - Kind=ambiguous 时 Count>=2，Candidate 为零值
// - Hint 仅在剧集查询且 Kind=none 时可能非空
// - Featured 仅在剧集查询命中 source 的推荐条目时为 true
type Selection struct {
	Kind      SelectionKind
	Candidate domain.CandidateRecord
	Verdict   domain.Verdict
	Count     int
	Hint      string
	Featured  bool
}

// Select 在有序候选列表上应用挑选规则：
// - 扫描到第一个 Exact 且导演（剧集查询还要求集数）匹配的候选立即返回
// - 否则聚合所有 Partial/Similar 且导演匹配的候选：0 个 none，1 个 match，2+ 个 ambiguous
//
// 剧集查询时标题比较的是季名；未命中时通过 Hint 给出近似原因。
// 剧集查询的第一个推荐条目只要标题可匹配就直接采用，不再检查导演与集数。
func Select(s Strategy, q domain.Query, cands []domain.CandidateRecord) Selection {
	if q.IsSeries() {
		if sel, ok := selectFeatured(s, q, cands); ok {
			return sel
		}
	}

	var (
		loose        []int
		looseVerdict []domain.Verdict
		episodeMiss  bool
		directorMiss bool
		seasonSeen   bool
	)

	for i, c := range cands {
		v := s.Classify(q.Title, c.Title)
		if !v.Matchable() {
			continue
		}
		dirOK := DirectorMatches(q.Director, c.DirectorText)
		epOK := !q.IsSeries() || EpisodeMatches(c.Title, *q.Episode)
		if !dirOK || !epOK {
			if q.IsSeries() {
				switch {
				case dirOK:
					episodeMiss = true
				case epOK:
					directorMiss = true
				default:
					seasonSeen = true
				}
			}
			continue
		}
		if v == domain.VerdictExact {
			return Selection{Kind: SelectMatch, Candidate: c, Verdict: v, Count: 1}
		}
		loose = append(loose, i)
		looseVerdict = append(looseVerdict, v)
	}

	switch len(loose) {
	case 0:
		sel := Selection{Kind: SelectNone}
		switch {
		case episodeMiss:
			sel.Hint = domain.CommentEpisodeMissing
		case directorMiss:
			sel.Hint = domain.CommentDirectorMismatch
		case seasonSeen:
			sel.Hint = domain.CommentSeasonOnly
		}
		return sel
	case 1:
		return Selection{Kind: SelectMatch, Candidate: cands[loose[0]], Verdict: looseVerdict[0], Count: 1}
	default:
		return Selection{Kind: SelectAmbiguous, Count: len(loose)}
	}
}

func selectFeatured(s Strategy, q domain.Query, cands []domain.CandidateRecord) (Selection, bool) {
	for _, c := range cands {
		if !c.Featured {
			continue
		}
		v := s.Classify(q.Title, c.Title)
		if !v.Matchable() {
			return Selection{}, false
		}
		return Selection{Kind: SelectMatch, Candidate: c, Verdict: v, Count: 1, Featured: true}, true
	}
	return Selection{}, false
}

// EpisodeMatches 判断候选标题是否指向指定的季/集。
// 识别 "Episode 3"/"Ep. 3"/"S02E03" 与 "Season 2"/"Series 2"/"S02" 等写法；Season=0 时不检查季。
func EpisodeMatches(title string, ep domain.EpisodeContext) bool {
	if ep.Episode <= 0 {
		return false
	}
	if !episodeRE(ep.Episode).MatchString(title) {
		return false
	}
	if ep.Season <= 0 {
		return true
	}
	return seasonRE(ep.Season).MatchString(title)
}

func episodeRE(n int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(?:\b(?:episode|ep\.?)\s*|[0-9]e)0*%d(?:[^0-9]|$)`, n))
}

func seasonRE(n int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)\b(?:season|series|s)\s*0*%d(?:[^0-9]|$)`, n))
}
