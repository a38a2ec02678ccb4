package scoring

import (
	"strings"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

const tableHeader = "| Correct answer | Your answer | Mark |\n| --- | --- | --- |"

var cellReplacer = strings.NewReplacer("|", "\\|", "\r\n", " ", "\n", " ")

// RenderTable renders one pipe-delimited row per answer pair.
func RenderTable(pairs []models.AnswerPair) string {
	if len(pairs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(tableHeader)
	for _, p := range pairs {
		sb.WriteString("\n| ")
		sb.WriteString(cellReplacer.Replace(p.CorrectAnswer))
		sb.WriteString(" | ")
		sb.WriteString(cellReplacer.Replace(p.UserAnswer))
		if p.IsCorrect {
			sb.WriteString(" | 1 |")
		} else {
			sb.WriteString(" | 0 |")
		}
	}
	return sb.String()
}
