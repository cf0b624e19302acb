package analysis

import (
	"fmt"
	"strings"

	"github.com/rationable/api/internal/models"
)

const emojiSystemPrompt = `You pick a single emoji that best represents a decision someone is facing.
Reply with JSON only: {"emoji": "<one emoji>"}`

const criteriaSystemPrompt = `You help people make decisions. Given a dilemma, list the criteria that matter most
when comparing the possible choices. Criteria are short noun phrases (1-4 words), distinct,
and ordered from most to least important.
Reply with JSON only: {"criteria": ["...", "..."]}`

const optionsSystemPrompt = `You are a rational decision analyst. Given a dilemma and weighted criteria, identify the
realistic options, evaluate each against every criterion and score it from 0 to 100.
Reply with JSON only, using exactly this shape:
{
  "recommendation": "<the best option, verbatim from the breakdown>",
  "description": "<two or three sentences explaining the recommendation>",
  "breakdown": [
    {"option": "...", "pros": ["..."], "cons": ["..."], "score": 0, "imageQuery": "<2-4 word photo search query>"}
  ]
}`

func languageLine(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, "en") {
		return ""
	}
	return fmt.Sprintf("\nWrite every human-readable string in the language with code %q.", lang)
}

func buildCriteriaPrompt(dilemma string, n int, lang string) string {
	return fmt.Sprintf("Dilemma: %s\nReturn exactly %d criteria.%s", dilemma, n, languageLine(lang))
}

func buildOptionsPrompt(dilemma string, criteria []models.Criterion, n int, lang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dilemma: %s\nCriteria:\n", dilemma)
	for _, c := range criteria {
		w := c.Weight
		if w <= 0 {
			w = 1
		}
		fmt.Fprintf(&b, "- %s (weight %g)\n", c.Name, w)
	}
	fmt.Fprintf(&b, "Return between 2 and %d options.", n)
	b.WriteString(languageLine(lang))
	return b.String()
}
