package classify

import (
	"strings"

	"github.com/sells-group/watchlog/internal/model"
)

const (
	maxDescriptionRunes = 500
	maxTags             = 15
)

// BuildPrompt renders the classification request for one channel. Only the
// signals present in the digest are included.
func BuildPrompt(labels *LabelSet, d model.ContentDigest) string {
	var sb strings.Builder
	sb.WriteString("Analyze this YouTube channel and decide which category it belongs to.\n\n")
	sb.WriteString("Channel Name: ")
	sb.WriteString(d.Channel)
	sb.WriteString("\n")

	if d.Title != "" {
		sb.WriteString("\nVideo Title: ")
		sb.WriteString(d.Title)
		sb.WriteString("\n")
	}
	if len(d.SampleTitles) > 0 {
		sb.WriteString("\nVideo Titles:\n")
		for _, t := range d.SampleTitles {
			sb.WriteString("- ")
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	}
	if desc := truncateRunes(strings.TrimSpace(d.Description), maxDescriptionRunes); desc != "" {
		sb.WriteString("\nDescription:\n")
		sb.WriteString(desc)
		sb.WriteString("\n")
	}
	if len(d.Tags) > 0 {
		tags := d.Tags
		if len(tags) > maxTags {
			tags = tags[:maxTags]
		}
		sb.WriteString("\nTags: ")
		sb.WriteString(strings.Join(tags, ", "))
		sb.WriteString("\n")
	}

	sb.WriteString("\nCategorize this channel into ONE of these categories ONLY:\n")
	sb.WriteString(strings.Join(labels.Labels(), ", "))
	sb.WriteString("\n\nAnswer with only the category name from the list above. No explanation, no additional text.\n\nCategory:")
	return sb.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
