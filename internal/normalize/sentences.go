package normalize

// SentenceTerminators end a sentence for splitting purposes.
const SentenceTerminators = "。！？；"

// IsSentenceEnd reports whether r closes a sentence.
func IsSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '；':
		return true
	}
	return false
}

// SplitSentences splits text after each Chinese terminal punctuation mark.
// The terminator stays with its sentence and nothing is trimmed, so the
// concatenation of the result is always the input.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if IsSentenceEnd(r) {
			end := i + len(string(r))
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
