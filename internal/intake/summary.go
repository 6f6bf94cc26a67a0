package intake

import (
	"strings"

	"dental-intake-bot/internal/catalog"
)

// Summary renders every collected value grouped the way it will be saved.
// Plain text only; Telegram markdown chokes on arbitrary operator input.
func Summary(s *Session) string {
	var b strings.Builder
	b.WriteString(msgSummaryHeader)

	b.WriteString("\n")
	writeGroup(&b, catalog.GroupPatient, s.Patient)

	for i, tooth := range s.Teeth {
		b.WriteString("\n")
		b.WriteString(toothLabel(i+1, tooth))
		b.WriteString("\n")
		writeGroup(&b, catalog.GroupTooth, tooth)
	}

	b.WriteString("\n")
	writeGroup(&b, catalog.GroupExamination, s.Examination)

	b.WriteString(msgSummaryQuestion)
	return b.String()
}

func writeGroup(b *strings.Builder, g catalog.Group, values Record) {
	for _, f := range catalog.Fields(g) {
		v := values[f.Key]
		if v == "" {
			v = summaryEmptyValue
		}
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\n")
	}
}
