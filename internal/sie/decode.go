// Package sie implements the SIE (Swedish accounting interchange format)
// codec: decode raw bytes to normalized UTF-8 text, parse that text into a
// structured domain.SIEParseResult, and write a parse result back to SIE
// text (spec.md §4.11).
package sie

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Decode detects a UTF-8 BOM or falls back to CP437 (IBM PC code page,
// "CP-437-ish" per spec.md §4.11), producing normalized UTF-8 text. Invalid
// byte sequences produce a diagnostic error rather than silent replacement,
// per spec.md's "no silent substitution" requirement.
func Decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, _, err := transform.Bytes(charmap.CodePage437.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("sie: decode CP437 body: %w", err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("sie: decoded body is not valid UTF-8 after CP437 conversion")
	}
	return string(decoded), nil
}
