// Package idgen centralizes every stable content-derived identifier the
// pipeline produces. spec.md §9 Open Question (a) flags that procedure ids
// must be derived from one function so their stability can be tested in
// isolation; MakeProcedureID is that function. Base36 encoding follows the
// teacher's internal/idgen encoder (github.com/steveyegge/beads), adapted to
// drop the teacher's timestamp/nonce salt: an id here must be a pure function
// of its content, never of wall-clock time, so the same procedure re-observed
// on a later run gets the same id.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts data to a base36 string of exactly length characters,
// left-padding with zeros or truncating to the least-significant digits.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var b strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		b.WriteByte(chars[i])
	}

	str := b.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// contentHashID sha256-hashes a pipe-joined, sorted-key content string and
// returns a prefixed base36 id. Sorting the key tokens before joining makes
// the id insensitive to the caller's slice order, not just its content.
func contentHashID(prefix string, length int, parts ...string) string {
	sorted := append([]string{}, parts...)
	sort.Strings(sorted)
	content := strings.Join(sorted, "|")
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s_%s", prefix, EncodeBase36(hash[:], length))
}

// MakeProcedureID is the single centralized derivation named in spec.md §9
// Open Question (a). titleNorm and municipalityKey are mandatory; keyTokens
// carries whatever additional stable key material the caller has (parcel
// token, plan token, decision date string) — callers MUST NOT include
// anything that varies between re-crawls of the same real-world procedure
// (retrieval timestamps, run ids).
func MakeProcedureID(titleNorm, municipalityKey string, keyTokens ...string) string {
	parts := append([]string{titleNorm, municipalityKey}, keyTokens...)
	return contentHashID("proc", 12, parts...)
}

// MakeProjectID derives the canonical project entity id from the municipality
// and one token of the procedure that creates the project. The memory and
// postgres DAO backends pass that procedure's normalized title, so the id
// depends on which procedure created the project.
func MakeProjectID(municipalityKey, firstSignatureToken string) string {
	return contentHashID("proj", 12, municipalityKey, firstSignatureToken)
}

// MakeDocumentID derives a document's id directly from its content hash, so
// identical bytes retrieved from different URLs collapse onto one id
// (spec.md §3 Document invariant).
func MakeDocumentID(contentSHA256 string) string {
	return fmt.Sprintf("doc_%s", contentSHA256[:24])
}

// MakeCandidateID derives a candidate's id from the fields that make a
// discovery result unique within a run: the run, the municipality, the
// source, and the URL it points at.
func MakeCandidateID(runID, municipalityKey string, source, url string) string {
	return contentHashID("cand", 12, runID, municipalityKey, source, url)
}
