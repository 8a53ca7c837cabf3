package fvlb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/ratingscout/internal/domain"
	"github.com/John-Robertt/ratingscout/internal/normalize"
	providerx "github.com/John-Robertt/ratingscout/internal/provider"
)

const (
	defaultBaseURL = "https://www.fvlb.org.nz"

	// 单次搜索最多进入的详情页数量。
	maxDetailPages = 10
)

// Source 实现 FVLB（Source B）的搜索 + 详情页抓取与解析。
//
// 约束：
// - 必须先搜索再进入详情页（详情 URL 无法由标题直接拼出）
// - 只跟进链接文本包含搜索标题（忽略大小写）的结果
// - 站点不提供上映年份与标签签发信息，这些字段留空，由引擎填 "N/A"
type Source struct {
	// BaseURL 为空时使用 https://www.fvlb.org.nz。
	BaseURL string
	Client  *http.Client
}

func (Source) Name() string { return providerx.NameFVLB }

// SearchURL 形如 <base>/search?title=Example+Movie&exact=true。
func (s Source) SearchURL(_ domain.Query, key string) string {
	base := providerx.BaseURL(s.BaseURL, defaultBaseURL)
	v := url.Values{}
	v.Set("title", strings.TrimSpace(key))
	v.Set("exact", "true")
	return base + "/search?" + v.Encode()
}

func (s Source) Fetch(ctx context.Context, q domain.Query, key string) ([]domain.CandidateRecord, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, "", errors.New("搜索标题不能为空")
	}
	base := providerx.BaseURL(s.BaseURL, defaultBaseURL)
	searchURL := s.SearchURL(q, key)

	searchHTML, err := providerx.FetchHTML(ctx, s.Client, searchURL)
	if err != nil {
		return nil, searchURL, &providerx.FetchError{Source: s.Name(), URL: searchURL, Err: err}
	}
	links, err := FindDetailLinks(searchHTML, key)
	if err != nil {
		return nil, searchURL, &providerx.FetchError{Source: s.Name(), URL: searchURL, Err: err}
	}
	if len(links) > maxDetailPages {
		links = links[:maxDetailPages]
	}

	out := make([]domain.CandidateRecord, 0, len(links))
	for _, l := range links {
		pageURL := providerx.ResolveURL(base+"/", l.Href)
		b, err := providerx.FetchHTML(ctx, s.Client, pageURL)
		if err != nil {
			return nil, searchURL, &providerx.FetchError{Source: s.Name(), URL: pageURL, Err: err}
		}
		c, err := ParseDetail(b)
		if err != nil {
			return nil, searchURL, &providerx.FetchError{Source: s.Name(), URL: pageURL, Err: err}
		}
		if c.Title == "" {
			c.Title = l.Text
		}
		out = append(out, c)
	}
	return out, searchURL, nil
}

// Link 是搜索结果中的一条详情链接。
type Link struct {
	Text string
	Href string
}

// FindDetailLinks 返回 .result-title 中文本包含 key 的详情链接（页面顺序）。
func FindDetailLinks(searchHTML []byte, key string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(searchHTML))
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(key))

	var out []Link
	doc.Find(".result-title").Each(func(_ int, s *goquery.Selection) {
		a := s
		if goquery.NodeName(s) != "a" {
			a = s.Find("a").First()
		}
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		text := normSpace(s.Text())
		if !strings.Contains(strings.ToLower(text), want) {
			return
		}
		out = append(out, Link{Text: text, Href: strings.TrimSpace(href)})
	})
	return out, nil
}

// ParseDetail 把详情页解析为候选。
// 运行时长句子被转换为 ["Running time:", "<N> minutes"]，以便与 Source A 共用表格字段提取。
func ParseDetail(page []byte) (domain.CandidateRecord, error) {
	if len(page) == 0 {
		return domain.CandidateRecord{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.CandidateRecord{}, err
	}

	c := domain.CandidateRecord{
		Title:               normSpace(doc.Find("h1").First().Text()),
		DirectorText:        normalize.TrimDirectedBy(normSpace(doc.Find(".film-director").First().Text())),
		ClassificationLabel: normSpace(doc.Find(".film-classification").First().Text()),
	}
	if approved := doc.Find(".film-approved"); approved.Length() > 1 {
		if rt := normalize.ExtractRuntime(approved.Eq(1).Text()); rt != domain.NA {
			c.TableLines = []string{"Running time:", rt}
		}
	}
	if c.Title == "" && c.DirectorText == "" && c.ClassificationLabel == "" {
		return domain.CandidateRecord{}, fmt.Errorf("详情页缺少 h1/.film-director/.film-classification")
	}
	return c, nil
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
