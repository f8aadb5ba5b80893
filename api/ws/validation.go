package ws

import "regexp"

var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor reports whether color is a six-digit hex color. Anything else
// coming off the wire is protocol misuse and gets dropped by the caller.
func ValidColor(color string) bool {
	return hexColorRegex.MatchString(color)
}
