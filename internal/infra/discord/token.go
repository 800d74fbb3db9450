package discord

import (
	"strings"
)

// Zero-width characters that ride along when tokens are pasted from rich
// text sources.
var zeroWidth = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
)

// NormalizeToken cleans a pasted credential and reports which
// transformations were applied. The notes are for diagnostic logging only;
// callers must not branch on them. Normalization is idempotent.
func NormalizeToken(raw string) (string, []string) {
	var notes []string
	tok := raw

	if trimmed := strings.TrimSpace(tok); trimmed != tok {
		notes = append(notes, "trimmed surrounding whitespace")
		tok = trimmed
	}

	if len(tok) >= 2 {
		first, last := tok[0], tok[len(tok)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			notes = append(notes, "removed surrounding quotes")
			tok = tok[1 : len(tok)-1]
		}
	}

	if stripped := strings.Trim(tok, `"'`); stripped != tok {
		notes = append(notes, "removed stray edge quotes")
		tok = stripped
	}

	if strings.ContainsAny(tok, "\r\n") {
		notes = append(notes, "removed embedded line breaks")
		tok = strings.NewReplacer("\r", "", "\n", "").Replace(tok)
	}

	if len(tok) >= 4 && strings.EqualFold(tok[:4], "bot ") {
		notes = append(notes, "removed bot token prefix")
		tok = strings.TrimSpace(tok[4:])
	}

	if cleaned := zeroWidth.Replace(tok); cleaned != tok {
		notes = append(notes, "removed zero-width characters")
		tok = cleaned
	}

	return strings.TrimSpace(tok), notes
}
