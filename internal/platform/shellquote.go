package platform

import "strings"

// ShellQuote escapes s for safe interpolation into a command line passed
// to the platform's native shell. POSIX shells (darwin/linux) get
// single-quote wrapping with embedded-quote escaping; Windows' cmd.exe
// gets double-quote wrapping with doubled internal quotes, per §4.9's
// wrapping rules for any value that reaches an engine's CLI tool
// (passwords, database names, arbitrary paths).
func ShellQuote(s string) string {
	if Current().OS == "windows" {
		return windowsQuote(s)
	}
	return posixQuote(s)
}

func posixQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func windowsQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
