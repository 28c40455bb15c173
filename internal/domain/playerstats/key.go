package playerstats

import (
	"strings"

	"github.com/valyala/bytebufferpool"
)

// NormalizeKey canonicalizes a scraped column label: lowercase, every run of
// characters outside [a-z0-9_%] becomes a single "_", and leading/trailing
// underscores are trimmed. It returns false when nothing is left.
//
// NormalizeKey(NormalizeKey(x)) == NormalizeKey(x).
func NormalizeKey(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	pendingSep := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if !keyByte(c) || c == '_' {
			pendingSep = true
			continue
		}
		if pendingSep && buf.Len() > 0 {
			_ = buf.WriteByte('_')
		}
		pendingSep = false
		_ = buf.WriteByte(c)
	}

	if buf.Len() == 0 {
		return "", false
	}
	return buf.String(), true
}

func keyByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '%'
}
