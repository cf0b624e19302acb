// Package markdown renders user-facing text (recommendations, comments, shared decision
// summaries) to HTML. Raw HTML in the source is never passed through.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"github.com/rationable/api/internal/models"
)

var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

// MentionPattern matches @handles; the handle is the first submatch.
var MentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9_][A-Za-z0-9_.-]{0,38})`)

var renderedMention = regexp.MustCompile(`(^|[^\w@/>])@([A-Za-z0-9_][A-Za-z0-9_.-]{0,38})`)

// Render converts markdown to HTML. On failure the escaped source is returned.
func Render(src string) string {
	var out bytes.Buffer
	if err := engine.Convert([]byte(src), &out); err != nil {
		return template.HTMLEscapeString(src)
	}
	return out.String()
}

// RenderComment renders a comment body and wraps mentions in spans.
func RenderComment(src string) string {
	html := Render(src)
	return renderedMention.ReplaceAllString(html, `$1<span class="mention">@$2</span>`)
}

// Mentions returns the distinct handles mentioned in text, in order of appearance.
func Mentions(text string) []string {
	matches := MentionPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		handle := strings.TrimRight(m[1], ".-")
		key := strings.ToLower(handle)
		if handle == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, handle)
	}
	return out
}

// DecisionSource builds the markdown summary of a decision: recommendation, a score table
// and per-option pros and cons.
func DecisionSource(d *models.DecisionModel) string {
	var b strings.Builder
	title := strings.TrimSpace(d.Emoji + " " + d.Dilemma)
	fmt.Fprintf(&b, "# %s\n\n", escapeInline(title))

	if d.Result.Recommendation != "" {
		fmt.Fprintf(&b, "**Recommendation:** %s\n\n", escapeInline(d.Result.Recommendation))
	}
	if d.Result.Description != "" {
		b.WriteString(d.Result.Description)
		b.WriteString("\n\n")
	}

	if len(d.Criteria) > 0 {
		names := make([]string, len(d.Criteria))
		for i, c := range d.Criteria {
			names[i] = escapeInline(c.Name)
		}
		fmt.Fprintf(&b, "_Criteria: %s_\n\n", strings.Join(names, ", "))
	}

	if len(d.Result.Breakdown) > 0 {
		b.WriteString("| Option | Score |\n|---|---:|\n")
		for _, item := range d.Result.Breakdown {
			fmt.Fprintf(&b, "| %s | %d |\n", escapeCell(item.Option), item.Score)
		}
		b.WriteString("\n")
	}

	for _, item := range d.Result.Breakdown {
		fmt.Fprintf(&b, "## %s\n\n", escapeInline(item.Option))
		for _, p := range item.Pros {
			fmt.Fprintf(&b, "- ✅ %s\n", escapeInline(p))
		}
		for _, c := range item.Cons {
			fmt.Fprintf(&b, "- ❌ %s\n", escapeInline(c))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDecision renders DecisionSource to HTML.
func RenderDecision(d *models.DecisionModel) string {
	return Render(DecisionSource(d))
}

var inlineEscaper = strings.NewReplacer(
	"\n", " ",
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
	"<", "&lt;",
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.TrimSpace(s))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(escapeInline(s), "|", `\|`)
}
