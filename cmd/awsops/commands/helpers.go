package commands

import "strings"

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// firstLine trims multi-line error text (suggestions) for table output
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
