package classoffice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/John-Robertt/ratingscout/internal/domain"
	providerx "github.com/John-Robertt/ratingscout/internal/provider"
)

const defaultBaseURL = "https://www.classificationoffice.govt.nz"

// Source 实现新西兰分级办公室（Source A）的搜索页抓取与解析。
//
// 约束：
// - 搜索结果页直接包含全部字段，不需要进入详情页
// - 每个 div[data-listing] 是一个候选，按页面顺序返回
// - 页面带 "Featured Result" 区块标题时，所有候选标记为 Featured
// - 剧集查询的搜索词为 "<季名>, Season N, Episode M"
// - Parse 是纯函数（依赖输入 html）
type Source struct {
	// BaseURL 为空时使用 https://www.classificationoffice.govt.nz。
	BaseURL string
	Client  *http.Client
}

func (Source) Name() string { return providerx.NameClassOffice }

// SearchURL 形如 <base>/find-a-rating/?search=Example+Movie。
func (s Source) SearchURL(q domain.Query, key string) string {
	base := providerx.BaseURL(s.BaseURL, defaultBaseURL)
	return base + "/find-a-rating/?search=" + url.QueryEscape(searchTerm(q, key))
}

func searchTerm(q domain.Query, key string) string {
	term := strings.TrimSpace(key)
	if !q.IsSeries() {
		return term
	}
	ep := q.Episode
	if ep.Season > 0 {
		return fmt.Sprintf("%s, Season %d, Episode %d", term, ep.Season, ep.Episode)
	}
	return fmt.Sprintf("%s, Episode %d", term, ep.Episode)
}

func (s Source) Fetch(ctx context.Context, q domain.Query, key string) ([]domain.CandidateRecord, string, error) {
	if strings.TrimSpace(key) == "" {
		return nil, "", errors.New("搜索标题不能为空")
	}
	u := s.SearchURL(q, key)
	b, err := providerx.FetchHTML(ctx, s.Client, u)
	if err != nil {
		return nil, u, &providerx.FetchError{Source: s.Name(), URL: u, Err: err}
	}
	cands, err := Parse(b)
	if err != nil {
		return nil, u, &providerx.FetchError{Source: s.Name(), URL: u, Err: err}
	}
	return cands, u, nil
}

// Parse 把搜索结果页解析为候选列表。没有标题的 listing 被跳过。
func Parse(page []byte) ([]domain.CandidateRecord, error) {
	if len(page) == 0 {
		return nil, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	featured := false
	doc.Find("h2.h6.mb-10").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		featured = strings.Contains(h.Text(), "Featured Result")
		return !featured
	})

	var out []domain.CandidateRecord
	doc.Find("div[data-listing]").Each(func(_ int, l *goquery.Selection) {
		title := normSpace(l.Find("h3.h2").First().Text())
		if title == "" {
			return
		}
		label := normSpace(l.Find("p.large.mb-2").First().Text())
		statement := normSpace(l.Find("p.large").Not(".mb-2").First().Text())
		if statement == "" {
			statement = label
		}
		out = append(out, domain.CandidateRecord{
			Title:               title,
			DirectorText:        normSpace(l.Find("p.small").First().Text()),
			RatingStatement:     statement,
			ClassificationLabel: label,
			TableLines:          textLines(l.Find("table.rating-result-table").First()),
			Featured:            featured,
		})
	})
	return out, nil
}

// textLines 按文档顺序收集 selection 下所有非空文本节点（逐个 trim）。
func textLines(sel *goquery.Selection) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := normSpace(n.Data); t != "" {
				out = append(out, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
