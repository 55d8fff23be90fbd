package commands

import "strings"

// tokenize splits command text on whitespace, honoring quotes and
// backslash escapes:
//
//	设置任务 08:30 "team stand-up" @alice
func tokenize(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar byte
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case esc:
			buf.WriteByte(ch)
			esc = false
		case ch == '\\':
			esc = true
		case inQ && ch == qChar:
			inQ = false
		case inQ:
			buf.WriteByte(ch)
		case ch == '"' || ch == '\'':
			inQ, qChar = true, ch
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	flush()
	return out
}

// commandWord normalizes the first token: "/settask@my_bot" -> "settask".
// slash reports whether the token carried the "/" prefix.
func commandWord(tok string) (word string, slash bool) {
	if strings.HasPrefix(tok, "/") {
		slash = true
		tok = tok[1:]
	}
	if i := strings.IndexByte(tok, '@'); i >= 0 {
		tok = tok[:i]
	}
	return strings.ToLower(tok), slash
}
