// File: internal/pagewatch/message.go
package pagewatch

import "regexp"

// messagePattern accepts "~k1" or "~k1~k2". Keywords exclude '~' and every
// character JavaScript's \s matches, which is wider than Go's \s.
var messagePattern = regexp.MustCompile(`^~([^~\s\x{0B}\p{Z}\x{FEFF}]+)(?:~([^~\s\x{0B}\p{Z}\x{FEFF}]+))?$`)

// Message is a chat text that matched the keyword syntax.
type Message struct {
	// Keywords holds one or two entries, in display order.
	Keywords []string
}

// ParseMessage matches text against the keyword syntax. Anything else, such
// as surrounding text, a third segment or whitespace inside a keyword, does
// not match.
func ParseMessage(text string) (Message, bool) {
	m := messagePattern.FindStringSubmatch(text)
	if m == nil {
		return Message{}, false
	}
	msg := Message{Keywords: []string{m[1]}}
	if m[2] != "" {
		msg.Keywords = append(msg.Keywords, m[2])
	}
	return msg, true
}
