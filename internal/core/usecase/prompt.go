package usecase

import (
	"fmt"
	"strings"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

const answerSystemPrompt = `You are a research assistant for additive-manufacturing resin experiments.
Answer strictly from the numbered evidence below. Cite every factual claim with its [n] marker.
Quote numeric values exactly as they appear in the evidence. Never invent values, units or sources.
If the evidence does not cover the question, say so plainly.`

const maxPromptChunks = 8
const chunkExcerptLimit = 600

var tierTokenBudget = map[domain.ComplexityTier]int{
	domain.ComplexitySimple:   512,
	domain.ComplexityStandard: 1024,
	domain.ComplexityDeep:     2048,
}

// PromptBundle is everything the generation call needs plus the
// citation list the assembler will attach to the final answer.
type PromptBundle struct {
	System     string
	User       string
	MaxTokens  int
	Citations  []domain.Citation
	ChunksUsed int
}

// BuildAnswerPrompt lays out chunks, experiments and insights as a
// numbered evidence list. Citation numbers are assigned here so the
// generator and the assembler agree on what [n] refers to.
func BuildAnswerPrompt(
	query domain.Query,
	classification domain.QueryClassification,
	chunks []domain.Chunk,
	graph domain.EvidenceGraph,
	critical []domain.CriticalDocument,
) PromptBundle {
	bundle := PromptBundle{
		System:    answerSystemPrompt,
		MaxTokens: tierTokenBudget[classification.Complexity],
	}
	if bundle.MaxTokens == 0 {
		bundle.MaxTokens = tierTokenBudget[domain.ComplexityStandard]
	}

	var b strings.Builder

	if len(query.History) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, turn := range query.History {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Evidence:\n")
	number := 0

	used := chunks
	if len(used) > maxPromptChunks {
		used = used[:maxPromptChunks]
	}
	for _, chunk := range used {
		number++
		bundle.Citations = append(bundle.Citations, domain.Citation{
			Number:     number,
			SourceType: chunk.SourceType,
			SourceID:   chunk.SourceID,
			Title:      chunk.Title,
			ProjectID:  chunk.ProjectID,
			Excerpt:    truncateExcerpt(chunk.Text, chunkExcerptLimit),
		})
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", number, chunkHeading(chunk), truncateExcerpt(chunk.Text, chunkExcerptLimit))
	}

	for _, exp := range graph.Experiments {
		if exp.MeasurementTotal() == 0 {
			continue
		}
		number++
		bundle.Citations = append(bundle.Citations, domain.Citation{
			Number:     number,
			SourceType: domain.SourceReport,
			SourceID:   exp.ID,
			Title:      exp.Title,
			ProjectID:  exp.ProjectID,
		})
		fmt.Fprintf(&b, "[%d] Experiment: %s\n", number, exp.Title)
		for _, variant := range exp.Variants {
			for _, m := range variant.Measurements {
				fmt.Fprintf(&b, "  %s / %s: %s %s", variant.Name, m.MetricKey,
					domain.DecimalForms(m.Value)[0], m.Unit)
				if m.CanonicalUnit != "" && m.CanonicalUnit != m.Unit {
					fmt.Fprintf(&b, " (%s %s)", domain.DecimalForms(m.CanonicalValue)[0], m.CanonicalUnit)
				}
				b.WriteString("\n")
			}
			for _, c := range variant.Conditions {
				fmt.Fprintf(&b, "  condition %s = %s\n", c.Key, c.Value)
			}
		}
		b.WriteString("\n")
	}

	for _, ins := range graph.Insights {
		number++
		bundle.Citations = append(bundle.Citations, domain.Citation{
			Number:     number,
			SourceType: domain.SourceInsight,
			SourceID:   ins.ID,
			ProjectID:  ins.ProjectID,
			Excerpt:    truncateExcerpt(ins.Text, chunkExcerptLimit),
		})
		status := "unverified"
		if ins.Verified {
			status = "verified"
		}
		fmt.Fprintf(&b, "[%d] Insight (%s): %s\n\n", number, status, ins.Text)
	}

	if len(critical) > 0 {
		b.WriteString("Most load-bearing documents:\n")
		for _, doc := range critical {
			fmt.Fprintf(&b, "- %s (%s)\n", doc.DocumentID, doc.Reason)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", query.Text)

	bundle.User = b.String()
	bundle.ChunksUsed = len(used)
	return bundle
}

// BuildRegenerationPrompt constrains a retry to the values the verifier
// accepted after a grounding failure.
func BuildRegenerationPrompt(bundle PromptBundle, ungrounded []string, graph domain.EvidenceGraph) string {
	var b strings.Builder
	b.WriteString(bundle.User)
	b.WriteString("\nYour previous draft quoted numbers absent from the evidence")
	if len(ungrounded) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ungrounded, ", "))
	}
	b.WriteString(". Rewrite the answer using only these values:\n")
	for _, v := range allowedValueStrings(graph) {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	b.WriteString("If a needed value is not listed, state that it is not available instead of estimating.\n")
	return b.String()
}

func allowedValueStrings(graph domain.EvidenceGraph) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range validValues(graph) {
		s := domain.DecimalForms(v)[0]
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func chunkHeading(chunk domain.Chunk) string {
	title := chunk.Title
	if title == "" {
		title = chunk.SourceID
	}
	if chunk.Page > 0 {
		return fmt.Sprintf("%s (%s, p.%d)", title, chunk.SourceType, chunk.Page)
	}
	return fmt.Sprintf("%s (%s)", title, chunk.SourceType)
}

func truncateExcerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
