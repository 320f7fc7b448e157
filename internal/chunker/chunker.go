// Package chunker splits normalized documents into overlapping,
// sentence-aligned passages and filters out passages unfit for retrieval.
package chunker

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mfenderov/regrag/internal/normalize"
	"github.com/mfenderov/regrag/pkg/models"
)

// Defaults, in model tokens. Chinese text runs about 1.5 tokens per character.
const (
	DefaultTargetTokens  = 800
	DefaultOverlapTokens = 100
	TokensPerChar        = 1.5
)

// Chunk quality thresholds.
const (
	MaxTokenShare = 0.3
	MinChunkCJK   = 0.5
	minRepTokens  = 5
)

// Config holds chunker configuration.
type Config struct {
	TargetTokens  int
	OverlapTokens int
}

// Chunker splits document text into passages.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// New creates a Chunker, converting token budgets to character budgets.
func New(config Config) *Chunker {
	if config.TargetTokens <= 0 {
		config.TargetTokens = DefaultTargetTokens
	}
	if config.OverlapTokens < 0 {
		config.OverlapTokens = 0
	}
	maxChars := int(float64(config.TargetTokens) / TokensPerChar)
	if maxChars < 1 {
		maxChars = 1
	}
	if maxChars > models.MaxChunkChars {
		maxChars = models.MaxChunkChars
	}
	overlapChars := int(float64(config.OverlapTokens) / TokensPerChar)
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}
	// A piece is its overlap seed plus up to maxChars of new text and must
	// still fit in a Chunk.
	if maxChars+overlapChars > models.MaxChunkChars {
		maxChars = models.MaxChunkChars - overlapChars
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// piece is a chunk's raw text; the first overlap bytes repeat the tail of the
// previous piece.
type piece struct {
	text    string
	overlap int
}

// Chunk splits doc into chunks carrying a copy of the document metadata.
func (c *Chunker) Chunk(doc *models.Document) []models.Chunk {
	meta := doc.Metadata()
	var chunks []models.Chunk
	for _, p := range c.split(doc.Text) {
		chunk, err := models.NewChunk(strings.TrimSpace(p.text), len(chunks), meta)
		if err != nil {
			slog.Debug("dropping chunk", "checksum", doc.Checksum, "error", err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// split greedily packs sentences into pieces of at most maxChars characters,
// seeding each new piece with a sentence-aligned overlap from the last one.
func (c *Chunker) split(text string) []piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var pieces []piece
	var cur strings.Builder
	curLen, overlap, overlapLen := 0, 0, 0

	for _, s := range c.sentences(text) {
		n := utf8.RuneCountInString(s)
		if curLen > overlapLen && curLen+n > c.maxChars {
			closed := cur.String()
			pieces = append(pieces, piece{text: closed, overlap: overlap})

			seed := c.overlapSuffix(closed)
			cur.Reset()
			cur.WriteString(seed)
			curLen = utf8.RuneCountInString(seed)
			overlap, overlapLen = len(seed), curLen
		}
		cur.WriteString(s)
		curLen += n
	}

	if curLen > overlapLen {
		last := piece{text: cur.String(), overlap: overlap}
		tail := last.text[last.overlap:]
		// A short tail is folded into the previous piece instead of being
		// dropped by the length check, as long as the result still fits.
		if n := len(pieces); n > 0 &&
			utf8.RuneCountInString(strings.TrimSpace(tail)) < models.MinChunkChars &&
			utf8.RuneCountInString(pieces[n-1].text)+utf8.RuneCountInString(tail) <= models.MaxChunkChars {
			pieces[n-1].text += tail
		} else {
			pieces = append(pieces, last)
		}
	}
	return pieces
}

// sentences splits on Chinese terminal punctuation and hard-splits any
// sentence longer than the budget.
func (c *Chunker) sentences(text string) []string {
	var out []string
	for _, s := range normalize.SplitSentences(text) {
		if utf8.RuneCountInString(s) <= c.maxChars {
			out = append(out, s)
			continue
		}
		r := []rune(s)
		for len(r) > c.maxChars {
			out = append(out, string(r[:c.maxChars]))
			r = r[c.maxChars:]
		}
		if len(r) > 0 {
			out = append(out, string(r))
		}
	}
	return out
}

// overlapSuffix returns the tail of text to repeat at the start of the next
// piece: the longest run of whole sentences within the overlap window, or the
// raw trailing window when no sentence boundary falls inside it.
func (c *Chunker) overlapSuffix(text string) string {
	if c.overlapChars == 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= c.overlapChars {
		return ""
	}
	window := r[len(r)-c.overlapChars:]
	for i := 0; i < len(window)-1; i++ {
		if normalize.IsSentenceEnd(window[i]) {
			return string(window[i+1:])
		}
	}
	return string(window)
}

// ValidateChunks drops chunks that are out of length bounds, dominated by a
// single repeated token, or not predominantly Chinese.
func ValidateChunks(chunks []models.Chunk) []models.Chunk {
	var out []models.Chunk
	for _, ch := range chunks {
		if reason := rejectReason(ch.Text); reason != "" {
			slog.Debug("chunk rejected", "id", ch.ID(), "reason", reason)
			continue
		}
		out = append(out, ch)
	}
	return out
}

func rejectReason(text string) string {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n < models.MinChunkChars:
		return "too short"
	case n > models.MaxChunkChars:
		return "too long"
	case repetitive(text):
		return "repetitive"
	case normalize.CJKRatio(text) < MinChunkCJK:
		return "low chinese ratio"
	}
	return ""
}

// repetitive reports whether one whitespace-delimited token makes up more than
// MaxTokenShare of all tokens. Text with few tokens is not judged.
func repetitive(text string) bool {
	tokens := strings.Fields(text)
	if len(tokens) < minRepTokens {
		return false
	}
	counts := make(map[string]int, len(tokens))
	top := 0
	for _, t := range tokens {
		counts[t]++
		if counts[t] > top {
			top = counts[t]
		}
	}
	return float64(top)/float64(len(tokens)) > MaxTokenShare
}
