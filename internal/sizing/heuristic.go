package sizing

import (
	"strings"
	"unicode/utf8"
)

// Threshold is the score at which a request might be too big.
const Threshold = 3

// LongDescription is the description length, in characters, that adds a point.
const LongDescription = 500

// wholeSystemPhrases suggest the request covers a whole product. Each adds 2
// when present.
var wholeSystemPhrases = []string{
	"multiple pages",
	"full website",
	"entire site",
	"complete app",
	"full application",
	"multiple integrations",
	"several features",
	"many components",
	"whole system",
	"entire platform",
	"comprehensive",
	"end-to-end",
	"full-stack",
	"complete solution",
}

// listSeparators approximate how many distinct things are asked for. Each
// occurrence adds 1.
var listSeparators = []string{
	",",
	" and ",
	" also ",
	" plus ",
	" along with ",
	" including ",
}

// integrationKeywords name third-party integrations. More than two distinct
// mentions add 2.
var integrationKeywords = []string{
	"stripe",
	"payment",
	"database",
	"api",
	"authentication",
	"auth",
	"email",
	"supabase",
	"prisma",
}

// Score returns the complexity score of a proposed request.
func Score(title, description string) int {
	text := strings.ToLower(title + " " + description)
	score := 0

	for _, phrase := range wholeSystemPhrases {
		if strings.Contains(text, phrase) {
			score += 2
		}
	}

	for _, sep := range listSeparators {
		score += strings.Count(text, sep)
	}

	if utf8.RuneCountInString(description) > LongDescription {
		score++
	}

	integrations := 0
	for _, kw := range integrationKeywords {
		if strings.Contains(text, kw) {
			integrations++
		}
	}
	if integrations > 2 {
		score += 2
	}

	return score
}

// QuickSizeCheck reports whether a request might be too big for one unit of
// work and deserves a full analysis.
func QuickSizeCheck(title, description string) bool {
	return Score(title, description) >= Threshold
}
