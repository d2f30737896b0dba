package atcmd

import "strings"

var (
	escaper   = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// Escape backslash-escapes every double quote and backslash in s.
//
// Every string argument goes through Escape, quoted or not: certificate
// names, hostnames, BSSIDs and keys are escaped the same way as SSIDs. A
// name is always stored and looked up on the host in its unescaped form;
// the escaped text only exists on the wire.
func Escape(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}

	return escaper.Replace(s)
}

// Unescape reverses Escape.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	return unescaper.Replace(s)
}

// Quote escapes s and wraps it in double quotes.
func Quote(s string) string {
	return `"` + Escape(s) + `"`
}
