package comment

import (
	"sort"

	"github.com/rationable/api/internal/models"
	"github.com/rationable/api/internal/modules/processing/markdown"
)

func toResponse(c *models.CommentModel, viewerID string) commentResponse {
	children := make([]commentResponse, len(c.Children))
	for i := range c.Children {
		children[i] = toResponse(&c.Children[i], viewerID)
	}
	mentions := []string(c.Mentions)
	if mentions == nil {
		mentions = []string{}
	}
	return commentResponse{
		ID:         c.ID,
		DecisionID: c.DecisionID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Text:       c.Text,
		HTML:       markdown.RenderComment(c.Text),
		Mentions:   mentions,
		ParentID:   c.ParentID,
		Children:   children,
		Reactions:  summarize(c.Reactions, viewerID),
		EditedAt:   c.EditedAt,
		Created:    c.CreatedAt,
		Modified:   c.UpdatedAt,
	}
}

// summarize groups reactions by emoji in first-seen order.
func summarize(reactions []models.ReactionModel, viewerID string) []ReactionSummary {
	sorted := append([]models.ReactionModel(nil), reactions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	out := []ReactionSummary{}
	index := map[string]int{}
	for _, r := range sorted {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(out)
			index[r.Emoji] = i
			out = append(out, ReactionSummary{Emoji: r.Emoji})
		}
		out[i].Count++
		if r.UserID == viewerID {
			out[i].Reacted = true
		}
	}
	return out
}
