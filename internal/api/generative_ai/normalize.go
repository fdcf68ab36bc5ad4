package generativeAI

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wanderhk/tourism-ai/internal/types"
)

// Normalizers enforce the output contract for each request kind. Provider
// output that cannot be parsed into the expected shape fails with
// ErrMalformedGeneration so the request handler can retry once with a
// stricter prompt instead of silently coercing free-form text.

// NormalizeChatAnswer validates and cleans a chat completion.
func NormalizeChatAnswer(raw string) (string, error) {
	answer := HumanizeResponse(raw)
	if answer == "" {
		return "", fmt.Errorf("empty chat completion: %w", types.ErrMalformedGeneration)
	}
	return answer, nil
}

// ParseTranslation expects the TRANSLATION:/CONTEXT: line format the
// translation prompt demands.
func ParseTranslation(raw string) (translation, culturalContext string, err error) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "TRANSLATION:"):
			translation = CleanMarkdown(strings.TrimSpace(strings.TrimPrefix(line, "TRANSLATION:")))
		case strings.HasPrefix(line, "CONTEXT:"):
			culturalContext = CleanMarkdown(strings.TrimSpace(strings.TrimPrefix(line, "CONTEXT:")))
		}
	}
	if translation == "" {
		return "", "", fmt.Errorf("completion missing TRANSLATION line: %w", types.ErrMalformedGeneration)
	}
	return translation, culturalContext, nil
}

// ParseImageTranslation additionally picks up the ORIGINAL: line the image
// prompt asks for. The echoed source text is best-effort; only the
// TRANSLATION line is mandatory.
func ParseImageTranslation(raw string) (original, translation, culturalContext string, err error) {
	translation, culturalContext, err = ParseTranslation(raw)
	if err != nil {
		return "", "", "", err
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ORIGINAL:") {
			original = CleanMarkdown(strings.TrimSpace(strings.TrimPrefix(line, "ORIGINAL:")))
			break
		}
	}
	return original, translation, culturalContext, nil
}

// ParseRecommendations splits the RECOMMENDATION-block format into
// structured entries. At least one well-formed block is required.
func ParseRecommendations(raw string) ([]types.Recommendation, error) {
	blocks := strings.Split(raw, "RECOMMENDATION ")
	var recs []types.Recommendation
	for _, block := range blocks[1:] {
		if rec, ok := parseRecommendationBlock(block); ok {
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no parseable recommendation blocks: %w", types.ErrMalformedGeneration)
	}
	return recs, nil
}

func parseRecommendationBlock(block string) (types.Recommendation, bool) {
	rec := types.Recommendation{Rating: 4.5}
	current := ""
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Name:"):
			rec.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Category:"):
			rec.Category = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
		case strings.HasPrefix(line, "Location:"):
			rec.Location = strings.TrimSpace(strings.TrimPrefix(line, "Location:"))
		case strings.HasPrefix(line, "Rating:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "Rating:")), 64); err == nil {
				rec.Rating = v
			}
		case strings.HasPrefix(line, "Description:"):
			rec.Description = CleanMarkdown(strings.TrimSpace(strings.TrimPrefix(line, "Description:")))
			current = "description"
		case strings.HasPrefix(line, "Why recommended:"):
			if reason := strings.TrimSpace(strings.TrimPrefix(line, "Why recommended:")); reason != "" {
				rec.Reasons = append(rec.Reasons, CleanMarkdown(reason))
			}
			current = "reasons"
		case strings.HasPrefix(line, "Estimated time:"):
			rec.EstimatedTime = strings.TrimSpace(strings.TrimPrefix(line, "Estimated time:"))
			current = ""
		case strings.HasPrefix(line, "Cost range:"):
			rec.CostRange = strings.TrimSpace(strings.TrimPrefix(line, "Cost range:"))
			current = ""
		case strings.HasPrefix(line, "Tips:"):
			if tip := strings.TrimSpace(strings.TrimPrefix(line, "Tips:")); tip != "" {
				rec.Reasons = append(rec.Reasons, "Tip: "+CleanMarkdown(tip))
			}
			current = ""
		case strings.HasPrefix(line, "Best time:"):
			current = ""
		case current == "description":
			rec.Description += " " + CleanMarkdown(line)
		case current == "reasons":
			rec.Reasons = append(rec.Reasons, CleanMarkdown(line))
		}
	}
	return rec, rec.Name != "" && rec.Description != ""
}

// ParseTips extracts the per-trip tip lines an itinerary completion ends
// with. Tips are best-effort; an empty result is not an error.
func ParseTips(raw string) []string {
	var tips []string
	for _, line := range strings.Split(CleanMarkdown(raw), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" {
			continue
		}
		tips = append(tips, line)
		if len(tips) == 5 {
			break
		}
	}
	return tips
}
