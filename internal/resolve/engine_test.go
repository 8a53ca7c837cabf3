package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ratingscout/internal/domain"
	"github.com/John-Robertt/ratingscout/internal/matcher"
	"github.com/John-Robertt/ratingscout/internal/provider"
)

type stubSource struct {
	name  string
	byKey map[string][]domain.CandidateRecord
	// errs[i] 是第 i+1 次调用的错误（nil 表示成功）。
	errs  []error
	block bool

	mu    sync.Mutex
	calls int
	keys  []string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) SearchURL(_ domain.Query, key string) string {
	return "https://" + s.name + ".example.test/search?q=" + url.QueryEscape(key)
}

func (s *stubSource) Fetch(ctx context.Context, q domain.Query, key string) ([]domain.CandidateRecord, string, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.keys = append(s.keys, key)
	s.mu.Unlock()

	u := s.SearchURL(q, key)
	if s.block {
		<-ctx.Done()
		return nil, u, ctx.Err()
	}
	if n <= len(s.errs) && s.errs[n-1] != nil {
		return nil, u, &provider.FetchError{Source: s.name, URL: u, Err: s.errs[n-1]}
	}
	return s.byKey[key], u, nil
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return nil
}

func newEngine(sources ...provider.Source) *Engine {
	return &Engine{
		Sources: sources,
		Matcher: matcher.SequenceStrategy{Threshold: matcher.DefaultSimilarityThreshold},
		Codes:   domain.DefaultRatingCodes(),
		Retry:   RetryPolicy{MaxAttempts: 1, Backoff: time.Second, Sleep: (&sleepRecorder{}).Sleep},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func exampleMovie() domain.CandidateRecord {
	return domain.CandidateRecord{
		Title:           "Example Movie",
		DirectorText:    "Jane Smith, 2010",
		RatingStatement: "Suitable for general audiences",
	}
}

func TestResolve_InvalidDirectorSkipsSources(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice}
	b := &stubSource{name: provider.NameFVLB}
	e := newEngine(a, b)

	for _, director := range []string{"1337", "", "  ", "Jane-Smith", "Jane Smith 2"} {
		out := e.Resolve(context.Background(), domain.NewQuery("Example Movie", director, nil))
		assert.Equal(t, domain.OutcomeInvalid, out.Kind, "director=%q", director)
		assert.Equal(t, ReasonBadDirector, out.Reason)
	}
	assert.Zero(t, a.Calls())
	assert.Zero(t, b.Calls())
}

func TestResolve_EmptyTitleIsInvalid(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice}
	out := newEngine(a).Resolve(context.Background(), domain.NewQuery("   ", "Jane Smith", nil))
	assert.Equal(t, domain.OutcomeInvalid, out.Kind)
	assert.Equal(t, ReasonEmptyTitle, out.Reason)
	assert.Zero(t, a.Calls())
}

func TestResolve_ExampleMovieFoundExact(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {exampleMovie()},
	}}
	b := &stubSource{name: provider.NameFVLB}
	q := domain.NewQuery("Example Movie", "Jane Smith", nil)

	out := newEngine(a, b).Resolve(context.Background(), q)

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.Equal(t, domain.VerdictExact, out.MatchKind)
	assert.Equal(t, "Suitable for general audiences", out.Details.Classification)
	assert.Equal(t, "G", out.Details.RatingCode)
	assert.Equal(t, "2010", out.Details.ReleaseYear)
	assert.Equal(t, domain.NA, out.Details.RunTime)
	assert.Equal(t, domain.NA, out.Details.LabelIssuedBy)
	assert.Equal(t, domain.NA, out.Details.LabelIssuedOn)
	assert.Equal(t, a.SearchURL(q, q.Title), out.SourceURL)
	assert.Equal(t, provider.NameClassOffice, out.Source)
	assert.Zero(t, b.Calls())
}

func TestResolve_ExactWinsOverPartials(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {
			{Title: "Example Movie Part 2", DirectorText: "Jane Smith, 2012", ClassificationLabel: "R16"},
			{Title: "Example Movie Returns", DirectorText: "Jane Smith, 2014", ClassificationLabel: "M"},
			{
				Title:               "Example Movie",
				DirectorText:        "Jane Smith, 2010",
				ClassificationLabel: "General",
				RatingStatement:     "Suitable for general audiences",
				TableLines:          []string{"Running time:", "95 minutes", "Label issued by:", "FVLB", "Label issued on:"},
			},
		},
	}}
	out := newEngine(a).Resolve(context.Background(), domain.NewQuery("Example Movie", "Jane Smith", nil))

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.Equal(t, domain.VerdictExact, out.MatchKind)
	assert.Equal(t, "General", out.Details.Classification)
	assert.Equal(t, "G", out.Details.RatingCode)
	assert.Equal(t, "95 minutes", out.Details.RunTime)
	assert.Equal(t, "FVLB", out.Details.LabelIssuedBy)
	assert.Equal(t, domain.NA, out.Details.LabelIssuedOn)
}

func TestResolve_AmbiguousDoesNotFallBack(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example": {
			{Title: "Example Movie", DirectorText: "Jane Smith, 2010"},
			{Title: "Example Movie Part 2", DirectorText: "Jane Smith, 2012"},
		},
	}}
	b := &stubSource{name: provider.NameFVLB, byKey: map[string][]domain.CandidateRecord{
		"Example": {{Title: "Example", DirectorText: "Jane Smith"}},
	}}
	q := domain.NewQuery("Example", "Jane Smith", nil)

	out := newEngine(a, b).Resolve(context.Background(), q)

	require.Equal(t, domain.OutcomeAmbiguous, out.Kind)
	assert.Equal(t, 2, out.CandidateCount)
	assert.Equal(t, a.SearchURL(q, q.Title), out.SourceURL)
	assert.Equal(t, domain.NA, out.Details.RatingCode)
	assert.Zero(t, b.Calls())
}

func TestResolve_FallbackToSourceB(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice}
	b := &stubSource{name: provider.NameFVLB, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {{
			Title:               "Example Movie",
			DirectorText:        "Jane Smith",
			ClassificationLabel: "PG",
			TableLines:          []string{"Running time:", "95 minutes"},
		}},
	}}
	q := domain.NewQuery("Example Movie", "Jane Smith", nil)

	out := newEngine(a, b).Resolve(context.Background(), q)

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.Equal(t, b.SearchURL(q, q.Title), out.SourceURL)
	assert.Equal(t, provider.NameFVLB, out.Source)
	assert.Equal(t, "PG", out.Details.RatingCode)
	assert.Equal(t, domain.NA, out.Details.ReleaseYear)
	assert.Equal(t, "95 minutes", out.Details.RunTime)
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, 1, b.Calls())
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, domain.StageNotFound, out.Attempts[0].Stage)
	assert.Equal(t, domain.StageOK, out.Attempts[1].Stage)
}

func TestResolve_NotFoundEverywhere(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {{Title: "Example Movie", DirectorText: "Bob Jones, 2010"}},
	}}
	b := &stubSource{name: provider.NameFVLB}
	q := domain.NewQuery("Example Movie", "Jane Smith", nil)

	out := newEngine(a, b).Resolve(context.Background(), q)

	assert.Equal(t, domain.OutcomeNotFound, out.Kind)
	assert.Equal(t, b.SearchURL(q, q.Title), out.SourceURL)
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, 1, b.Calls())
	assert.Equal(t, domain.NA, out.Details.Classification)
}

func TestResolve_OnlySourceAEnabledKeepsItsURL(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice}
	q := domain.NewQuery("Example Movie", "Jane Smith", nil)

	out := newEngine(a).Resolve(context.Background(), q)

	assert.Equal(t, domain.OutcomeNotFound, out.Kind)
	assert.Equal(t, a.SearchURL(q, q.Title), out.SourceURL)
}

func TestResolve_RetriesExhaustedCountAsNotFound(t *testing.T) {
	boom := errors.New("connection reset")
	a := &stubSource{name: provider.NameClassOffice, errs: []error{boom, boom, boom}}
	b := &stubSource{name: provider.NameFVLB, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {exampleMovie()},
	}}
	rec := &sleepRecorder{}
	e := newEngine(a, b)
	e.Retry = RetryPolicy{MaxAttempts: 3, Backoff: 5 * time.Second, Sleep: rec.Sleep}

	out := e.Resolve(context.Background(), domain.NewQuery("Example Movie", "Jane Smith", nil))

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.Equal(t, provider.NameFVLB, out.Source)
	assert.Equal(t, 3, a.Calls())
	assert.Equal(t, 1, b.Calls())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, rec.sleeps)

	require.Len(t, out.Attempts, 2)
	assert.Equal(t, domain.StageFetch, out.Attempts[0].Stage)
	assert.Equal(t, 3, out.Attempts[0].Tries)
	assert.Contains(t, out.Attempts[0].Error, "connection reset")
}

func TestResolve_RetrySucceedsOnSecondAttempt(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, errs: []error{errors.New("timeout")}, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {exampleMovie()},
	}}
	b := &stubSource{name: provider.NameFVLB}
	e := newEngine(a, b)
	e.Retry.MaxAttempts = 2

	out := e.Resolve(context.Background(), domain.NewQuery("Example Movie", "Jane Smith", nil))

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.Equal(t, 2, a.Calls())
	assert.Zero(t, b.Calls())
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, 2, out.Attempts[0].Tries)
}

func TestResolve_SecondaryKeyOnSameSource(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {exampleMovie()},
	}}
	b := &stubSource{name: provider.NameFVLB}
	e := newEngine(a, b)
	e.SecondaryKey = true

	out := e.Resolve(context.Background(), domain.NewQuery("Example Movie (2010)", "Jane Smith", nil))

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.Equal(t, domain.VerdictExact, out.MatchKind)
	assert.Equal(t, []string{"Example Movie (2010)", "Example Movie"}, a.keys)
	assert.Equal(t, a.SearchURL(domain.Query{}, "Example Movie"), out.SourceURL)
	assert.Zero(t, b.Calls())
}

func TestResolve_SecondaryKeyOnlyOnFirstSource(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice}
	b := &stubSource{name: provider.NameFVLB}
	e := newEngine(a, b)
	e.SecondaryKey = true

	out := e.Resolve(context.Background(), domain.NewQuery("Example Movie 2010", "Jane Smith", nil))

	assert.Equal(t, domain.OutcomeNotFound, out.Kind)
	assert.Equal(t, []string{"Example Movie 2010", "Example Movie"}, a.keys)
	assert.Equal(t, 1, b.Calls(), "回退的 source 只能查询一次")
	assert.Equal(t, []string{"Example Movie 2010"}, b.keys)
	assert.Len(t, out.Attempts, 3)
}

func TestResolve_SecondaryKeyDisabled(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example Movie": {exampleMovie()},
	}}
	e := newEngine(a)

	out := e.Resolve(context.Background(), domain.NewQuery("Example Movie (2010)", "Jane Smith", nil))

	assert.Equal(t, domain.OutcomeNotFound, out.Kind)
	assert.Equal(t, []string{"Example Movie (2010)"}, a.keys)
}

func TestResolve_SeriesHintBecomesComment(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example Show": {{Title: "Example Show Season 1 Episode 4", DirectorText: "Jane Smith, 2020"}},
	}}
	b := &stubSource{name: provider.NameFVLB}
	q := domain.NewQuery("Example Show", "Jane Smith", &domain.EpisodeContext{Season: 1, Episode: 3})

	out := newEngine(a, b).Resolve(context.Background(), q)

	assert.Equal(t, domain.OutcomeNotFound, out.Kind)
	assert.Equal(t, domain.CommentEpisodeMissing, out.Comment)
	assert.Equal(t, 1, b.Calls())
}

func TestResolve_FetchTimeoutBoundsEachCall(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, block: true}
	e := newEngine(a)
	e.FetchTimeout = 20 * time.Millisecond

	done := make(chan domain.Outcome, 1)
	go func() { done <- e.Resolve(context.Background(), domain.NewQuery("Example Movie", "Jane Smith", nil)) }()

	select {
	case out := <-done:
		assert.Equal(t, domain.OutcomeNotFound, out.Kind)
		require.Len(t, out.Attempts, 1)
		assert.Equal(t, domain.StageFetch, out.Attempts[0].Stage)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "FetchTimeout 未生效")
	}
}

func TestResolve_TokenSetStrategyKeepsContract(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Lord of the Rings": {{Title: "The Rings: Lord of", DirectorText: "Peter Jackson, 2001", ClassificationLabel: "M"}},
	}}
	e := newEngine(a)
	e.Matcher = matcher.TokenSetStrategy{Threshold: matcher.DefaultTokenThreshold}

	out := e.Resolve(context.Background(), domain.NewQuery("Lord of the Rings", "Peter Jackson", nil))

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.Equal(t, domain.VerdictSimilar, out.MatchKind)
	assert.Equal(t, "M", out.Details.RatingCode)
	assert.Equal(t, "2001", out.Details.ReleaseYear)
}

func TestResolve_FeaturedSeriesResult(t *testing.T) {
	a := &stubSource{name: provider.NameClassOffice, byKey: map[string][]domain.CandidateRecord{
		"Example Show": {{
			Title:               "Example Show",
			DirectorText:        "Various",
			ClassificationLabel: "M",
			Featured:            true,
		}},
	}}
	b := &stubSource{name: provider.NameFVLB}
	q := domain.NewQuery("Example Show", "Jane Smith", &domain.EpisodeContext{Season: 1, Episode: 3})

	out := newEngine(a, b).Resolve(context.Background(), q)

	require.Equal(t, domain.OutcomeFound, out.Kind)
	assert.True(t, out.Featured)
	assert.Equal(t, "M", out.Details.RatingCode)
	assert.Equal(t, domain.CommentFeatured, domain.ReportRow{Outcome: out}.Comment())
	assert.Zero(t, b.Calls())
}
