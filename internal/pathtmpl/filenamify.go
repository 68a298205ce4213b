package pathtmpl

import "regexp"

// reservedChars matches the filesystem-reserved character classes spec
// 4.10 names: <>:"/\|?* plus the C0 control range and the DEL/C1 range.
var reservedChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F\x7F-\x9F]+`)

// windowsReservedName matches the Windows device names spec 4.10 calls
// out: con, prn, aux, nul, com[0-9], lpt[0-9].
var windowsReservedName = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com\d|lpt\d)$`)

// outerPeriods matches leading/trailing runs of '.', collapsed per spec
// 4.10 ("collapsing leading/trailing dots").
var outerPeriods = regexp.MustCompile(`^\.+|\.+$`)

// filenamify sanitizes a single rendered path segment (or a full rendered
// path, with separators already protected by a sentinel -- see
// ProtectSeparators/RestoreSeparators) per spec 4.10.
func filenamify(input string) string {
	out := reservedChars.ReplaceAllString(input, "_")
	out = outerPeriods.ReplaceAllString(out, "_")
	if windowsReservedName.MatchString(out) {
		out += "_"
	}
	return out
}
