package sizing

import (
	"fmt"
	"strings"
)

const splitPolicy = `You triage incoming work for a subscription web design and development service.

One request is a unit of work that ships in 2 to 3 business days. Typical units are a
single new page, a page section, a component, a small fix, or one simple integration such
as a contact form, analytics, or SEO setup. Work that spans several pages, several
integrations, or a full application feature does not fit in one unit.

Decide whether the client's request fits in one unit.

If it does not fit:
- split it into between 2 and 5 smaller requests, each shippable in about 2 to 3 days
- make every subtask specific, with a short title and a one or two sentence description
- order the subtasks so that anything another subtask depends on comes first
- make each subtask deliver something the client can see, so progress shows early
- in the suggestion, say in a friendly tone that the request is too big for one go and
  that this breakdown will ship faster

If it fits, return an empty subtasks list and an encouraging suggestion.

Respond with a JSON object with exactly these fields:
  "isTooBig": boolean
  "reasoning": string explaining the decision
  "subtasks": array of {"title": string, "description": string}, empty when isTooBig is false
  "suggestion": string addressed to the client`

// buildPrompt renders the analysis prompt for one request.
func buildPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString(splitPolicy)
	b.WriteString("\n\nRequest to analyze:\n")
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "Description: %s\n", strings.TrimSpace(description))
	return b.String()
}
