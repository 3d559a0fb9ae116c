// Package prompt assembles the bounded generation context: ranked source
// excerpts, the optional caller profile, and the fixed instruction block.
package prompt

import (
	"fmt"
	"strings"

	"github.com/brownbiotech/longevita/engine/domain"
	"github.com/brownbiotech/longevita/pkg/fn"
)

// Options bounds the assembled context.
type Options struct {
	// TopK caps the number of sources presented to the generator.
	TopK int
	// ExcerptMaxRunes caps each source excerpt.
	ExcerptMaxRunes int
	// SystemPrompt overrides the default system prompt when non-empty.
	SystemPrompt string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		ExcerptMaxRunes: 1200,
	}
}

const defaultSystemPrompt = `You are a longevity-science research assistant for Brown Biotech.
Answer the user's question using ONLY the provided sources. If the sources do
not contain enough information, say so plainly. Cite every claim with its
source index in the form [Source N]. Never invent a citation.`

// Context is the assembled prompt pair plus the sources in the exact order
// they were presented, so citation indices can be resolved afterwards.
type Context struct {
	System  string
	User    string
	Sources []domain.RetrievalResult
}

// Assembler builds generation contexts.
type Assembler struct {
	opts Options
}

// New creates an Assembler. Zero option fields fall back to defaults.
func New(opts Options) *Assembler {
	def := DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.ExcerptMaxRunes <= 0 {
		opts.ExcerptMaxRunes = def.ExcerptMaxRunes
	}
	return &Assembler{opts: opts}
}

// Build assembles the context for a query from ranked results. Sources are
// deduplicated by record ID and capped at TopK, keeping ranked order.
func (a *Assembler) Build(query domain.Query, ranked []domain.RetrievalResult, language domain.Language) Context {
	sources := dedupe(ranked, a.opts.TopK)

	var b strings.Builder
	for i, r := range sources {
		writeSource(&b, i+1, r, a.opts.ExcerptMaxRunes)
		b.WriteByte('\n')
	}

	if !query.Profile.Empty() {
		writeProfile(&b, query.Profile)
		b.WriteByte('\n')
	}

	writeInstructions(&b, language)
	b.WriteString("\nQuestion: ")
	b.WriteString(query.Text)

	system := a.opts.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}

	return Context{
		System:  system,
		User:    b.String(),
		Sources: sources,
	}
}

func dedupe(ranked []domain.RetrievalResult, topK int) []domain.RetrievalResult {
	unique := fn.UniqueBy(ranked, func(r domain.RetrievalResult) string { return r.Record.ID })
	if len(unique) > topK {
		unique = unique[:topK]
	}
	return unique
}

func writeSource(b *strings.Builder, index int, r domain.RetrievalResult, maxRunes int) {
	m := r.Record.Metadata
	fmt.Fprintf(b, "[Source %d] type=%s", index, m.Type)
	if m.Year != 0 {
		fmt.Fprintf(b, " year=%d", m.Year)
	}
	if m.Journal != "" {
		fmt.Fprintf(b, " journal=%q", m.Journal)
	}
	if len(m.Authors) > 0 {
		fmt.Fprintf(b, " authors=%q", strings.Join(m.Authors, ", "))
	}
	if m.SampleSize != 0 {
		fmt.Fprintf(b, " n=%d", m.SampleSize)
	}
	fmt.Fprintf(b, " relevance=%.2f\n", r.Relevance)
	b.WriteString(truncateExcerpt(r.Record.Text, maxRunes))
	b.WriteByte('\n')
}

func writeProfile(b *strings.Builder, p domain.Profile) {
	b.WriteString("Caller profile:\n")
	if p.Age != 0 {
		fmt.Fprintf(b, "- age: %d\n", p.Age)
	}
	if len(p.Goals) > 0 {
		fmt.Fprintf(b, "- goals: %s\n", strings.Join(p.Goals, ", "))
	}
	if len(p.Conditions) > 0 {
		fmt.Fprintf(b, "- conditions: %s\n", strings.Join(p.Conditions, ", "))
	}
	if len(p.Supplements) > 0 {
		fmt.Fprintf(b, "- supplements: %s\n", strings.Join(p.Supplements, ", "))
	}
	for k, v := range p.Extra {
		fmt.Fprintf(b, "- %s: %s\n", k, v)
	}
}

func writeInstructions(b *strings.Builder, language domain.Language) {
	b.WriteString(`Instructions:
- Use only the sources above; do not draw on outside knowledge.
- Cite claims as [Source N] using the source indices above.
- Prefer recent, high-relevance sources when they disagree.
- State limitations of the evidence and avoid definitive medical advice.
`)
	switch language {
	case domain.LangKorean:
		b.WriteString("- Respond in Korean, polite register (존댓말).\n")
	default:
		fmt.Fprintf(b, "- Respond in %s.\n", languageName(language))
	}
}

func languageName(l domain.Language) string {
	switch l {
	case domain.LangEnglish, domain.LangAuto:
		return "English"
	case domain.LangKorean:
		return "Korean"
	default:
		return string(l)
	}
}
