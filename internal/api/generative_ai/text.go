package generativeAI

import (
	"regexp"
	"strings"
)

var (
	boldRe       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underlineRe  = regexp.MustCompile(`__(.*?)__`)
	italicStarRe = regexp.MustCompile(`\*(.*?)\*`)
	italicLowRe  = regexp.MustCompile(`_(.*?)_`)
	codeBlockRe  = regexp.MustCompile("(?s)```(.*?)```")
	inlineCodeRe = regexp.MustCompile("`(.*?)`")
	headerRe     = regexp.MustCompile(`(?m)^#+\s*`)
	hruleRe      = regexp.MustCompile(`(?m)^[-*]{3,}\s*$`)
	blankRunsRe  = regexp.MustCompile(`\n\s*\n\s*\n`)
)

// CleanMarkdown strips markdown syntax from provider output so responses
// read as plain prose.
func CleanMarkdown(text string) string {
	if text == "" {
		return text
	}
	text = boldRe.ReplaceAllString(text, "$1")
	text = underlineRe.ReplaceAllString(text, "$1")
	text = italicStarRe.ReplaceAllString(text, "$1")
	text = italicLowRe.ReplaceAllString(text, "$1")
	text = codeBlockRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "")
	text = hruleRe.ReplaceAllString(text, "")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// HumanizeResponse cleans markdown and closes the text with terminal
// punctuation if the model trailed off.
func HumanizeResponse(text string) string {
	text = CleanMarkdown(text)
	if text != "" && !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}
	return text
}
