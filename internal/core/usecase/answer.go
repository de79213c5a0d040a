package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/olshev/transcript-insight/internal/core/domain"
	"github.com/olshev/transcript-insight/internal/core/ports"
)

// AnswerUseCase turns a fused retrieval response into a citation-grounded
// answer. The context handed to the generator is token-balanced per source
// and every returned citation is validated against the admitted chunks.
type AnswerUseCase struct {
	retriever ports.Retriever
	generator ports.AnswerGenerator
	counter   ports.TokenCounter
	maxTokens int
}

func NewAnswerUseCase(retriever ports.Retriever, generator ports.AnswerGenerator, counter ports.TokenCounter, maxTokensPerSource int) *AnswerUseCase {
	return &AnswerUseCase{
		retriever: retriever,
		generator: generator,
		counter:   counter,
		maxTokens: maxTokensPerSource,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.RetrievalRequest) (*domain.Answer, *domain.RetrievalResponse, error) {
	resp, err := uc.retriever.Retrieve(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	if len(resp.Results) == 0 {
		return &domain.Answer{
			Answer:      "No relevant transcript content was found for this question.",
			Citations:   []domain.Citation{},
			Confidence:  "low",
			Limitations: "no sources returned data",
		}, resp, nil
	}

	admitted, _ := balanceContext(resp.Results, uc.maxTokens, uc.counter)
	if len(admitted) == 0 {
		return &domain.Answer{
			Answer:      "The retrieved content could not be used to answer this question.",
			Citations:   []domain.Citation{},
			Confidence:  "low",
			Limitations: "no retrieved chunk fits within the configured token budget",
		}, resp, nil
	}

	answer, err := uc.generator.GenerateAnswer(ctx, req.Query, admitted, trustGuidance(resp.EvidenceQuality))
	if err != nil {
		return nil, resp, fmt.Errorf("generate answer: %w", err)
	}

	validateCitations(answer, admitted)
	return answer, resp, nil
}

// validateCitations drops citations that do not reference an admitted chunk
// and records the fact as a limitation instead of failing the answer.
func validateCitations(answer *domain.Answer, admitted []domain.FusedResult) {
	known := make(map[string]domain.FusedResult, len(admitted))
	for _, chunk := range admitted {
		known[chunk.ChunkID] = chunk
	}

	kept := make([]domain.Citation, 0, len(answer.Citations))
	dropped := 0
	for _, citation := range answer.Citations {
		chunk, ok := known[citation.ChunkID]
		if !ok || (citation.VideoID != "" && citation.VideoID != chunk.VideoID) {
			dropped++
			continue
		}
		if citation.VideoID == "" {
			citation.VideoID = chunk.VideoID
		}
		if citation.Title == "" {
			citation.Title = chunk.Title
		}
		kept = append(kept, citation)
	}
	answer.Citations = kept

	if dropped > 0 {
		note := fmt.Sprintf("%d citation(s) referenced chunks outside the retrieved context and were removed", dropped)
		if strings.TrimSpace(answer.Limitations) == "" {
			answer.Limitations = note
		} else {
			answer.Limitations += "; " + note
		}
	}
}
