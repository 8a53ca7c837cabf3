package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

func TestMapRatingToCode(t *testing.T) {
	m := domain.DefaultRatingCodes()

	assert.Equal(t, "G", MapRatingToCode(m, "Suitable for general audiences"))
	assert.Equal(t, "RP16", MapRatingToCode(m, "Restricted to persons 16 years and over unless accompanied by a parent or guardian"))
	assert.Equal(t, "Something else", MapRatingToCode(m, "Something else"), "未知语句应原样返回")
	assert.Equal(t, "", MapRatingToCode(m, ""))
}

func TestMapRatingToCode_IdempotentOnCodes(t *testing.T) {
	m := domain.DefaultRatingCodes()
	for _, code := range []string{"G", "PG", "M", "13", "R13", "RP13", "R15", "16", "R16", "RP16", "18", "R18", "RP18"} {
		once := MapRatingToCode(m, code)
		assert.Equal(t, code, once)
		assert.Equal(t, once, MapRatingToCode(m, once))
	}
}

func TestResolveRatingCode(t *testing.T) {
	m := domain.DefaultRatingCodes()

	assert.Equal(t, "M", ResolveRatingCode(m, "Suitable for mature audiences", "whatever"))
	assert.Equal(t, "PG", ResolveRatingCode(m, "", "Parental Guidance"))
	assert.Equal(t, "R16", ResolveRatingCode(m, "unknown", "R16"), "标签本身已是短码")
	assert.Equal(t, domain.NA, ResolveRatingCode(m, "unknown", "also unknown"))
}

func TestExtractTableFields(t *testing.T) {
	lines := []string{
		"Classification:",
		"M",
		"Running time:",
		"  98 minutes ",
		"Label issued by:",
		"Film and Video Labelling Body",
		"Label issued on:",
		"12 March 2010",
	}
	got := ExtractTableFields(lines)
	assert.Equal(t, TableFields{RunTime: "98 minutes", LabelIssuedBy: "Film and Video Labelling Body", LabelIssuedOn: "12 March 2010"}, got)
}

func TestExtractTableFields_MissingMarkersAndTrailingMarker(t *testing.T) {
	got := ExtractTableFields([]string{"Label issued by:", "OFLC", "Running time:"})
	assert.Equal(t, domain.NA, got.RunTime, "标记在最后一行时不应越界")
	assert.Equal(t, "OFLC", got.LabelIssuedBy)
	assert.Equal(t, domain.NA, got.LabelIssuedOn)

	empty := ExtractTableFields(nil)
	assert.Equal(t, TableFields{RunTime: domain.NA, LabelIssuedBy: domain.NA, LabelIssuedOn: domain.NA}, empty)
}

func TestExtractReleaseYear(t *testing.T) {
	cases := map[string]string{
		"2010, Directed by Jane Smith": "2010",
		"Jane Smith, 2010":             "2010",
		"Jane Smith":                   domain.NA,
		"Drama, Jane Smith":            "Drama",
		"":                             domain.NA,
		" , ":                          domain.NA,
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractReleaseYear(in), "input=%q", in)
	}
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"Heavenly Creatures (1994)": "Heavenly Creatures",
		"Heavenly Creatures 1994":   "Heavenly Creatures",
		"  Boy   2010 ":             "Boy",
		"Example Movie Part 2":      "Example Movie Part 2",
		"1917":                      "1917",
		"Blade Runner 2049":         "Blade Runner",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanTitle(in), "input=%q", in)
	}
}

func TestValidDirectorName(t *testing.T) {
	assert.True(t, ValidDirectorName("Jane Smith"))
	assert.True(t, ValidDirectorName("Taika Waititi"))
	assert.False(t, ValidDirectorName(""))
	assert.False(t, ValidDirectorName("   "))
	assert.False(t, ValidDirectorName("1337"))
	assert.False(t, ValidDirectorName("J. Smith"))
	assert.False(t, ValidDirectorName("Jane-Smith"))
}

func TestExtractRuntimeAndDirectedBy(t *testing.T) {
	assert.Equal(t, "98 minutes", ExtractRuntime("This title has a runtime of 98 minutes."))
	assert.Equal(t, domain.NA, ExtractRuntime("No runtime recorded"))
	assert.Equal(t, "Jane Smith", TrimDirectedBy("  Directed by   Jane Smith "))
	assert.Equal(t, "Jane Smith", TrimDirectedBy("Jane Smith"))
}

func TestFold(t *testing.T) {
	require.Equal(t, "amelie", Fold("Amélie"))
	assert.Equal(t, "the lord of the rings the two towers", Fold("The Lord of the Rings: The Two Towers"))
	assert.Equal(t, "strasse", Fold("STRASSE"))
}
