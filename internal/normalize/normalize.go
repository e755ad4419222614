// Package normalize lowercases and umlaut-folds German text while tracking the
// byte offset in the original text each normalized rune came from, so evidence
// snippets can later be sliced out of the original (unnormalized) text.
package normalize

import (
	"strings"
	"unicode"
)

// OffsetMap maps a byte offset in the normalized string to the byte offset in
// the original string where the corresponding content started.
type OffsetMap []int

// Result is the output of Normalize: the normalized text plus its offset map.
type Result struct {
	Text      string
	OffsetMap OffsetMap
}

var umlautFold = map[rune]string{
	'ä': "ae", 'Ä': "ae",
	'ö': "oe", 'Ö': "oe",
	'ü': "ue", 'Ü': "ue",
	'ß': "ss",
}

// Normalize lowercases, folds umlauts (ä→ae, ö→oe, ü→ue, ß→ss) and collapses
// runs of whitespace (including newlines) to a single space, in that order, and
// is idempotent on its own output: Normalize(Normalize(s).Text) == Normalize(s).
func Normalize(text string) Result {
	var b strings.Builder
	offsets := make(OffsetMap, 0, len(text))

	appendOffset := func(srcOffset int, n int) {
		for i := 0; i < n; i++ {
			offsets = append(offsets, srcOffset)
		}
	}

	runes := []rune(text)
	byteOffsets := make([]int, len(runes)+1)
	{
		off := 0
		for i, r := range runes {
			byteOffsets[i] = off
			off += len(string(r))
		}
		byteOffsets[len(runes)] = off
	}

	lastWasSpace := false
	for i, r := range runes {
		srcOff := byteOffsets[i]
		lower := unicode.ToLower(r)

		if folded, ok := umlautFold[r]; ok {
			if lastWasSpace && folded != "" {
				// no-op, folded text is never whitespace
			}
			b.WriteString(folded)
			appendOffset(srcOff, len(folded))
			lastWasSpace = false
			continue
		}

		if unicode.IsSpace(lower) {
			if lastWasSpace {
				continue
			}
			b.WriteByte(' ')
			appendOffset(srcOff, 1)
			lastWasSpace = true
			continue
		}

		s := string(lower)
		b.WriteString(s)
		appendOffset(srcOff, len(s))
		lastWasSpace = false
	}

	out := strings.TrimSpace(b.String())
	trimmed := len(b.String()) - len(strings.TrimLeft(b.String(), " "))
	if trimmed > 0 && trimmed <= len(offsets) {
		offsets = offsets[trimmed:]
	}
	if len(offsets) > len(out) {
		offsets = offsets[:len(out)]
	}

	return Result{Text: out, OffsetMap: offsets}
}

// OriginalOffset translates a byte offset into the normalized text back to the
// corresponding byte offset in the original text. Offsets past the end of the
// map clamp to the last known offset.
func (r Result) OriginalOffset(normOffset int) int {
	if len(r.OffsetMap) == 0 {
		return 0
	}
	if normOffset < 0 {
		normOffset = 0
	}
	if normOffset >= len(r.OffsetMap) {
		return r.OffsetMap[len(r.OffsetMap)-1]
	}
	return r.OffsetMap[normOffset]
}
