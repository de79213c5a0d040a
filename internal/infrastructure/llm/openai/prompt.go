package openai

import (
	"fmt"
	"strings"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

const answerSystemPrompt = `You answer questions about video transcripts using only the provided context.
Return a strict JSON object with keys:
answer (string), citations (array of objects with chunk_id, video_id, title), confidence (one of "high", "medium", "low"), limitations (string, may be empty).
Every factual claim must cite a chunk_id from the context. Never cite a chunk that is not in the context.
If the context does not contain the answer, say so in the answer and set confidence to "low".`

func buildAnswerPrompt(question string, chunks []domain.FusedResult, guidance string) string {
	var contextBuilder strings.Builder
	for _, chunk := range chunks {
		sources := make([]string, 0, len(chunk.MatchedSources))
		for _, s := range chunk.MatchedSources {
			sources = append(sources, string(s))
		}
		contextBuilder.WriteString(fmt.Sprintf(
			"[chunk_id=%s video_id=%s title=%q sources=%s]\n%s\n\n",
			chunk.ChunkID,
			chunk.VideoID,
			chunk.Title,
			strings.Join(sources, ","),
			chunk.Text,
		))
	}

	var b strings.Builder
	if guidance != "" {
		b.WriteString("Evidence guidance: ")
		b.WriteString(guidance)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question:\n%s\n\nContext:\n%s", question, contextBuilder.String())
	return b.String()
}
