package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillquiz-service/internal/domain"
)

func TestBuiltinCategories(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	cats := c.Categories()
	require.Len(t, cats, 6)
	assert.Equal(t, "javascript", cats[0].ID)
	assert.Equal(t, 8, cats[0].QuestionCount)

	byID := map[string]domain.Category{}
	for _, cat := range cats {
		byID[cat.ID] = cat
	}
	assert.Equal(t, "Backend", byID["backend"].DisplayName)
	assert.Equal(t, "🖥️", byID["backend"].IconRef)
	assert.Equal(t, 2, byID["coding"].QuestionCount)
}

func TestFetchIsCaseInsensitiveAndLimited(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	qs, err := c.Fetch(context.Background(), "JavaScript", "", 5)
	require.NoError(t, err)
	assert.Len(t, qs, 5)

	qs, err = c.Fetch(context.Background(), "coding", "", 10)
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	qs, err = c.Fetch(context.Background(), "cobol", "", 10)
	require.NoError(t, err)
	assert.NotNil(t, qs)
	assert.Empty(t, qs)

	_, err = c.Fetch(context.Background(), "react", "", -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFetchFiltersDifficultyBeforeLimiting(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	qs, err := c.Fetch(context.Background(), "javascript", domain.DifficultyEasy, 10)
	require.NoError(t, err)
	assert.Len(t, qs, 4)
	for _, q := range qs {
		assert.Equal(t, domain.DifficultyEasy, q.Difficulty)
	}

	qs, err = c.Fetch(context.Background(), "javascript", domain.DifficultyHard, 1)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "js5", qs[0].ID)
}

func TestFetchDoesNotReorderCatalog(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, _ = c.Fetch(context.Background(), "dsa", "", 5)
	}
	assert.Equal(t, "dsa1", c.entries["dsa"].questions[0].ID)
}

// Every permutation of four questions should appear close to 1/24 of the time.
func TestShuffleFairness(t *testing.T) {
	c, err := Parse([]byte(`
categories:
  - id: tiny
    questions:
      - {id: a, text: A, options: ["x", "y"], correctAnswer: x, difficulty: easy}
      - {id: b, text: B, options: ["x", "y"], correctAnswer: x, difficulty: easy}
      - {id: c, text: C, options: ["x", "y"], correctAnswer: x, difficulty: easy}
      - {id: d, text: D, options: ["x", "y"], correctAnswer: x, difficulty: easy}
`))
	require.NoError(t, err)
	c.WithShuffler(NewShuffler(42))

	const rounds = 48000
	counts := map[string]int{}
	for i := 0; i < rounds; i++ {
		qs, err := c.Fetch(context.Background(), "tiny", "", 4)
		require.NoError(t, err)
		ids := make([]string, len(qs))
		for j, q := range qs {
			ids[j] = q.ID
		}
		counts[strings.Join(ids, "")]++
	}

	require.Len(t, counts, 24)
	expected := float64(rounds) / 24
	var chi2 float64
	for perm, n := range counts {
		diff := float64(n) - expected
		chi2 += diff * diff / expected
		assert.InDelta(t, expected, float64(n), expected*0.1, "permutation %s", perm)
	}
	// 23 degrees of freedom; 49.7 is the 0.999 quantile.
	assert.Less(t, chi2, 49.7)
}

func TestParseRejectsBadQuestions(t *testing.T) {
	_, err := Parse([]byte(`
categories:
  - id: bad
    questions:
      - {id: a, text: A, options: ["x", "y"], correctAnswer: z}
`))
	assert.Error(t, err)

	_, err = Parse([]byte(`
categories:
  - id: repeated
    questions:
      - {id: a, text: A, options: ["x", "x"], correctAnswer: x}
`))
	assert.Error(t, err)

	_, err = Parse([]byte(`
categories:
  - id: dup
  - id: DUP
`))
	assert.Error(t, err)
}

func TestDisplayNameFallback(t *testing.T) {
	c, err := Parse([]byte(`
categories:
  - id: system_design
`))
	require.NoError(t, err)
	cat := c.Categories()[0]
	assert.Equal(t, "System design", cat.DisplayName)
	assert.Equal(t, defaultDescription, cat.Description)
	assert.Equal(t, defaultIcon, cat.IconRef)
}
