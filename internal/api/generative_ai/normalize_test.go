package generativeAI

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderhk/tourism-ai/internal/types"
)

func TestNormalizeChatAnswer(t *testing.T) {
	t.Run("strips markdown and closes the sentence", func(t *testing.T) {
		got, err := NormalizeChatAnswer("**Victoria Peak** is a must-see")
		require.NoError(t, err)
		assert.Equal(t, "Victoria Peak is a must-see.", got)
	})

	t.Run("empty output is malformed", func(t *testing.T) {
		_, err := NormalizeChatAnswer("   \n  ")
		assert.ErrorIs(t, err, types.ErrMalformedGeneration)
	})
}

func TestParseTranslation(t *testing.T) {
	t.Run("both lines", func(t *testing.T) {
		raw := "TRANSLATION: 你好\nCONTEXT: A casual greeting in Cantonese."
		translation, context, err := ParseTranslation(raw)
		require.NoError(t, err)
		assert.Equal(t, "你好", translation)
		assert.Equal(t, "A casual greeting in Cantonese.", context)
	})

	t.Run("context optional", func(t *testing.T) {
		translation, context, err := ParseTranslation("TRANSLATION: 多謝")
		require.NoError(t, err)
		assert.Equal(t, "多謝", translation)
		assert.Empty(t, context)
	})

	t.Run("missing translation line is malformed", func(t *testing.T) {
		_, _, err := ParseTranslation("Here is your translation: 你好")
		assert.ErrorIs(t, err, types.ErrMalformedGeneration)
	})
}

func TestParseImageTranslation(t *testing.T) {
	t.Run("all lines", func(t *testing.T) {
		raw := "ORIGINAL: 小心地滑\nTRANSLATION: Caution, slippery floor\nCONTEXT: A common sign in malls and MTR stations."
		original, translation, context, err := ParseImageTranslation(raw)
		require.NoError(t, err)
		assert.Equal(t, "小心地滑", original)
		assert.Equal(t, "Caution, slippery floor", translation)
		assert.Equal(t, "A common sign in malls and MTR stations.", context)
	})

	t.Run("original is best-effort", func(t *testing.T) {
		original, translation, _, err := ParseImageTranslation("TRANSLATION: Exit")
		require.NoError(t, err)
		assert.Empty(t, original)
		assert.Equal(t, "Exit", translation)
	})

	t.Run("missing translation line is malformed", func(t *testing.T) {
		_, _, _, err := ParseImageTranslation("ORIGINAL: 出口")
		assert.ErrorIs(t, err, types.ErrMalformedGeneration)
	})
}

func TestParseRecommendations(t *testing.T) {
	raw := `RECOMMENDATION 1
Name: Tim Ho Wan
Category: food
Location: Sham Shui Po
Rating: 4.5
Description: The cheapest Michelin-starred restaurant in the world.
Why recommended: Matches your interest in local food.
Estimated time: 1 hour
Cost range: HK$50-100
Tips: Go before 11am to avoid the queue.
Best time: morning

RECOMMENDATION 2
Name: Temple Street Night Market
Category: shopping
Description: An open-air market with food stalls
and fortune tellers.
Why recommended: Lively evening atmosphere.
`

	recs, err := ParseRecommendations(raw)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "Tim Ho Wan", first.Name)
	assert.Equal(t, "food", first.Category)
	assert.Equal(t, "Sham Shui Po", first.Location)
	assert.Equal(t, 4.5, first.Rating)
	assert.Equal(t, "1 hour", first.EstimatedTime)
	assert.Equal(t, "HK$50-100", first.CostRange)
	assert.Contains(t, first.Reasons, "Matches your interest in local food.")
	assert.Contains(t, first.Reasons, "Tip: Go before 11am to avoid the queue.")

	second := recs[1]
	assert.Equal(t, "Temple Street Night Market", second.Name)
	assert.Equal(t, "An open-air market with food stalls and fortune tellers.", second.Description)
	assert.Equal(t, 4.5, second.Rating, "missing rating falls back to the default")
}

func TestParseRecommendations_Malformed(t *testing.T) {
	t.Run("no blocks", func(t *testing.T) {
		_, err := ParseRecommendations("I suggest visiting the Peak and eating dim sum.")
		assert.ErrorIs(t, err, types.ErrMalformedGeneration)
	})

	t.Run("block without a name is dropped", func(t *testing.T) {
		raw := "RECOMMENDATION 1\nCategory: food\nDescription: something\n"
		_, err := ParseRecommendations(raw)
		assert.ErrorIs(t, err, types.ErrMalformedGeneration)
	})
}

func TestParseTips(t *testing.T) {
	raw := `- Get an Octopus card
- Carry cash for markets
- **Avoid** rush hour on the MTR
- Tip four
- Tip five
- Tip six never makes it`

	tips := ParseTips(raw)
	require.Len(t, tips, 5)
	assert.Equal(t, "Get an Octopus card", tips[0])
	assert.Equal(t, "Avoid rush hour on the MTR", tips[2])
}

func TestCleanMarkdown(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"**bold** and *italic*", "bold and italic"},
		{"# Header\ntext", "Header\ntext"},
		{"`inline code`", "inline code"},
		{"a\n\n\n\nb", "a\n\nb"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanMarkdown(tc.in))
	}
}

func TestHumanizeResponse(t *testing.T) {
	assert.Equal(t, "Already punctuated!", HumanizeResponse("Already punctuated!"))
	assert.Equal(t, "Needs a period.", HumanizeResponse("Needs a period"))
	assert.Equal(t, "", HumanizeResponse(""))
}
