package snap

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

// MinifyJSON serializes v with no extraneous whitespace and without HTML
// escaping, so forward slashes survive intact. The signature is computed
// over these exact bytes, so the same function must produce both the
// signed and the transmitted body.
//
// json.RawMessage and []byte inputs are compacted as-is, preserving the
// original key order.
func MinifyJSON(v any) ([]byte, error) {
	switch raw := v.(type) {
	case json.RawMessage:
		return compact(raw)
	case []byte:
		return compact(raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder appends a newline.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func compact(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PadField left-pads a fixed-width protocol field with exactly three
// spaces. BRI computes signatures over the padded value, so existing
// leading whitespace is stripped first to keep the result byte-exact.
// Applies to partnerServiceId and virtualAccountNo.
func PadField(v string) string {
	return "   " + strings.TrimLeftFunc(v, unicode.IsSpace)
}

// StripSpaces removes every space from a VA number so lookups match
// regardless of the counterpart's field-width padding.
func StripSpaces(v string) string {
	return strings.ReplaceAll(v, " ", "")
}
