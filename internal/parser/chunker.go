package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// MaxSize: maximum chunk size in characters before overlap.
	MaxSize int
	// Overlap: trailing characters of a chunk re-included at the start
	// of the next one. Must stay below MaxSize or chunk boundaries
	// cannot advance.
	Overlap int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxSize: 800,
		Overlap: 100,
	}
}

// normalize clamps invalid values so the chunker always advances.
func (c ChunkConfig) normalize() ChunkConfig {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultChunkConfig().MaxSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.MaxSize {
		c.Overlap = c.MaxSize / 2
	}
	return c
}

// ChunkText splits text into sentence-aware chunks. Sentences are packed
// greedily until adding the next one would exceed MaxSize; each finished
// chunk then donates up to Overlap trailing characters to the start of
// the next chunk, aligned to a sentence boundary where one fits and a
// word boundary otherwise. A single sentence longer than MaxSize becomes
// its own oversized chunk. Empty input yields no chunks.
func ChunkText(text string, cfg ChunkConfig) []string {
	cfg = cfg.normalize()

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	// Phase one: greedy sentence packing.
	var packed [][]string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			packed = append(packed, cur)
			cur = nil
			curLen = 0
		}
	}

	for _, sentence := range sentences {
		if curLen > 0 && curLen+1+len(sentence) > cfg.MaxSize {
			flush()
		}
		if curLen > 0 {
			curLen++ // joining space
		}
		cur = append(cur, sentence)
		curLen += len(sentence)
	}
	flush()

	// Phase two: prepend each chunk with the overlap tail of its
	// predecessor to preserve cross-chunk context.
	chunks := make([]string, len(packed))
	for i, group := range packed {
		chunk := strings.Join(group, " ")
		if i > 0 {
			if tail := overlapTail(packed[i-1], cfg.Overlap); tail != "" {
				chunk = tail + " " + chunk
			}
		}
		chunks[i] = chunk
	}

	return chunks
}

// overlapTail returns the trailing portion of a finished chunk to carry
// into the next one: whole trailing sentences when they fit within the
// overlap budget, otherwise the last overlap characters trimmed to a
// word boundary.
func overlapTail(sentences []string, overlap int) string {
	if overlap <= 0 {
		return ""
	}

	// Prefer sentence alignment.
	tailLen := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		add := len(sentences[i])
		if tailLen > 0 {
			add++
		}
		if tailLen+add > overlap {
			break
		}
		tailLen += add
		start = i
	}
	if start < len(sentences) {
		return strings.Join(sentences[start:], " ")
	}

	// No whole sentence fits; take a word-aligned character tail of the
	// last sentence.
	last := sentences[len(sentences)-1]
	if len(last) <= overlap {
		return last
	}
	cut := len(last) - overlap
	for cut < len(last) && !utf8.RuneStart(last[cut]) {
		cut++
	}
	tail := last[cut:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx+1 < len(tail) {
		tail = tail[idx+1:]
	}
	return tail
}

// splitSentences splits text into trimmed sentences. A sentence ends at
// '.', '!' or '?' followed by whitespace, unless the terminator looks
// like an abbreviation ("Dr.", "U.S.").
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	emit := func() {
		s := strings.TrimSpace(current.String())
		current.Reset()
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Only a boundary when followed by whitespace or end of text.
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			if r == '.' && isAbbreviation(runes, i) {
				continue
			}
			emit()
		}
	}
	emit()

	return sentences
}

// isAbbreviation reports whether the period at index i terminates an
// abbreviation rather than a sentence: a single capital ("U.S.",
// initials) or a common title ("Dr.", "Prof.").
func isAbbreviation(runes []rune, i int) bool {
	if i > 0 && unicode.IsUpper(runes[i-1]) && (i < 2 || !unicode.IsLetter(runes[i-2])) {
		return true
	}
	j := i - 1
	for j >= 0 && unicode.IsLetter(runes[j]) {
		j--
	}
	switch string(runes[j+1 : i]) {
	case "Dr", "Mr", "Mrs", "Ms", "Prof", "St", "Jr", "Sr", "vs":
		return true
	}
	return false
}
