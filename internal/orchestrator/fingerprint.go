package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint computes the canonical idempotency key for a tool invocation:
// the tool name plus the recursively key-sorted parameter tree. It is stable
// under key reordering of nested maps and across repeated computation.
func Fingerprint(tool string, params map[string]any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, params)

	h := xxhash.New()
	_, _ = h.WriteString(tool)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(buf.Bytes())
	return fmt.Sprintf("%016x", h.Sum64())
}

// writeCanonical serializes v as JSON with object keys sorted recursively.
// Scalars go through encoding/json so numeric formatting is consistent with
// the decoder that produced the parameter map.
func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			// Unmarshalable values still need a deterministic encoding.
			b, _ = json.Marshal(fmt.Sprintf("%v", val))
		}
		buf.Write(b)
	}
}
