package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindClosestMatch_ExactMatch(t *testing.T) {
	source := []string{"line 1", "line 2", "line 3"}
	search := []string{"line 2"}

	result, ok := FindClosestMatch(source, search)
	require.True(t, ok)
	assert.Equal(t, 1, result.StartIndex)
	assert.Equal(t, 1.0, result.Similarity)
	assert.Equal(t, []string{"line 2"}, result.MatchedLines)
	assert.Empty(t, result.CorrectionFeedback())
}

func TestFindClosestMatch_FuzzyMatchMissingSemicolon(t *testing.T) {
	source := []string{"if ft.is_dir() {", " return true;", "}"}
	search := []string{"if ft.is_dir() {", " return true"}

	result, ok := FindClosestMatch(source, search)
	require.True(t, ok)
	assert.Equal(t, 0, result.StartIndex)
	assert.Greater(t, result.Similarity, 0.9)
	assert.Equal(t, "if ft.is_dir() {", result.MatchedLines[0])
	assert.NotEmpty(t, result.CorrectionFeedback())
}

func TestFindClosestMatch_MultilineMatch(t *testing.T) {
	source := []string{
		"None => return false,",
		"Some(ft) => ft,",
		"};",
		"if ft.is_dir() {",
		"return true;",
		"}",
	}
	search := []string{
		"None => return false,",
		"Some(ft) => ft,",
		"};",
		"if ft.is_dir() {",
		"return true",
	}

	result, ok := FindClosestMatch(source, search)
	require.True(t, ok)
	assert.Equal(t, 0, result.StartIndex)
	assert.Greater(t, result.Similarity, 0.95)
}

func TestFindClosestMatch_EmptySearchOrSourceReturnsFalse(t *testing.T) {
	_, ok := FindClosestMatch(nil, []string{"x"})
	assert.False(t, ok)

	_, ok = FindClosestMatch([]string{"x"}, nil)
	assert.False(t, ok)
}

func TestFindClosestMatch_SearchLongerThanSourceReturnsFalse(t *testing.T) {
	_, ok := FindClosestMatch([]string{"a"}, []string{"a", "b"})
	assert.False(t, ok)
}

func TestCorrectionFeedback_ReportsSimilarityPercentAndLineNumber(t *testing.T) {
	source := []string{"aaa", "bbb", "ccc"}
	search := []string{"bbX"}

	result, ok := FindClosestMatch(source, search)
	require.True(t, ok)
	feedback := result.CorrectionFeedback()
	assert.Contains(t, feedback, "similarity at line 2")
	assert.Contains(t, feedback, "Closest match:")
	assert.Contains(t, feedback, "bbb")
}

func TestLevenshteinDistance_BasicCases(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("abc", "abc"))
	assert.Equal(t, 3, levenshteinDistance("", "abc"))
	assert.Equal(t, 3, levenshteinDistance("abc", ""))
	assert.Equal(t, 1, levenshteinDistance("abc", "abd"))
}
