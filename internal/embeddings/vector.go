package embeddings

import (
	"fmt"
	"strconv"
	"strings"
)

// Vector is one section embedding.
type Vector []float64

// ParseVector decodes the bracketed text form used by pgvector, e.g. "[0.1,-2,3e-05]".
// An empty string or "[]" decodes to a nil vector.
func ParseVector(raw string) (Vector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return nil, fmt.Errorf("vector %q is not bracketed", truncate(raw))
	}

	body := strings.TrimSpace(raw[1 : len(raw)-1])
	if body == "" {
		return nil, nil
	}

	parts := strings.Split(body, ",")
	vec := make(Vector, 0, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("vector component %d: %w", i, err)
		}
		vec = append(vec, f)
	}

	return vec, nil
}

// String encodes the vector in the bracketed text form.
func (v Vector) String() string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// text returns the value bound to a vector column: nil for an absent vector.
func (v Vector) text() *string {
	if len(v) == 0 {
		return nil
	}
	s := v.String()
	return &s
}

func truncate(s string) string {
	const limit = 32
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
