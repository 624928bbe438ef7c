package anthropic

import (
	"fmt"

	"github.com/burka/podpulse/internal/ai"
)

func buildPrompt(params ai.AnalyzeParams) string {
	var prompt string
	switch params.Kind {
	case ai.KindCover:
		prompt = fmt.Sprintf(`You are a podcast marketing expert. Review the cover artwork at %s.
Describe the dominant colors, whether the title text is readable at small sizes,
the overall brightness and contrast, and give three concrete recommendations
that would make the cover stand out in a podcast directory.`, params.Subject)
	case ai.KindTrends:
		prompt = fmt.Sprintf(`You are a podcast analytics expert. Analyze the recent chart
performance of %q. Identify the overall trend, notable jumps or drops, likely
causes, and give three recommendations to improve chart position.`, params.Subject)
	default:
		prompt = fmt.Sprintf(`You are a podcast content analyst. Analyze the episode %q.
Summarize the main topics, assess the target audience and tone, and give three
recommendations to improve engagement.`, params.Subject)
	}

	if params.Context != "" {
		prompt += fmt.Sprintf("\n\nAdditional context from the user:\n%s", params.Context)
	}

	return prompt + "\n\nAnswer in concise plain text with short sections."
}
