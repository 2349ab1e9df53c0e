// Package lex provides the ASCII character-class predicates and
// bounded run-length scanners that the Room codec uses to tokenize the
// verb, channel, and count header fields.
package lex

// IsBlank reports whether b is a Room protocol field terminator byte:
// space, tab, newline, carriage return, or form feed.
func IsBlank(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	default:
		return false
	}
}

// IsSign reports whether b is a channel sign byte.
func IsSign(b byte) bool {
	return b == '+' || b == '-'
}

// IsLetter reports whether b is a verb byte: underscore or ASCII letter.
func IsLetter(b byte) bool {
	return b == '_' || ('A' <= b && b <= 'Z') || ('a' <= b && b <= 'z')
}

// IsDigit reports whether b is an ASCII decimal digit.
func IsDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

// IsHex reports whether b is an ASCII hexadecimal digit (either case).
func IsHex(b byte) bool {
	return IsDigit(b) || ('A' <= b && b <= 'F') || ('a' <= b && b <= 'f')
}

// ScanBlank returns the length of the leading run of blank bytes in view,
// or 0 if that length is outside [min, max].
func ScanBlank(view []byte, min, max int) int {
	return scanRun(view, IsBlank, min, max)
}

// ScanWord returns the length of the leading run of verb bytes in view
// ([A-Za-z_]), or 0 if that length is outside [min, max].
func ScanWord(view []byte, min, max int) int {
	return scanRun(view, IsLetter, min, max)
}

// ScanDigit returns the length of the leading run of decimal digits in
// view, or 0 if that length is outside [min, max].
func ScanDigit(view []byte, min, max int) int {
	return scanRun(view, IsDigit, min, max)
}

// ScanHex returns the length of the leading run of hex digits in view, or
// 0 if that length is outside [min, max].
func ScanHex(view []byte, min, max int) int {
	return scanRun(view, IsHex, min, max)
}

// scanRun counts the leading bytes of view matching class, never reading
// past len(view) and at most one byte past max. It reports 0 if the count
// falls short of min or exceeds max.
func scanRun(view []byte, class func(byte) bool, min, max int) int {
	limit := len(view)
	if max >= 0 && max < limit {
		limit = max + 1
	}

	n := 0
	for n < limit && class(view[n]) {
		n++
	}

	if n < min || (max >= 0 && n > max) {
		return 0
	}
	return n
}
