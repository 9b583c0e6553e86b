package sites

import "strings"

// Site identifies a source website. The declaration order is the default
// display priority: FurAffinity first, then e621, then Twitter, with the
// remaining sites in registration order.
type Site int

const (
	FurAffinity Site = iota
	E621
	Twitter
	Weasyl
	Inkbunny
	Direct
)

var siteNames = map[Site]string{
	FurAffinity: "FurAffinity",
	E621:        "e621",
	Twitter:     "Twitter",
	Weasyl:      "Weasyl",
	Inkbunny:    "Inkbunny",
	Direct:      "Direct",
}

// String returns the display name, which is also the wire name used in job
// payloads and user configuration.
func (s Site) String() string {
	if name, ok := siteNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Parse resolves a wire name back to a Site, case-insensitively.
func Parse(name string) (Site, bool) {
	for site, n := range siteNames {
		if strings.EqualFold(n, name) {
			return site, true
		}
	}
	return 0, false
}

// ParseList resolves a list of wire names, dropping unknown entries.
func ParseList(names []string) []Site {
	out := make([]Site, 0, len(names))
	for _, n := range names {
		if s, ok := Parse(n); ok {
			out = append(out, s)
		}
	}
	return out
}

// DefaultOrder returns the default site display priority.
func DefaultOrder() []Site {
	return []Site{FurAffinity, E621, Twitter, Weasyl, Inkbunny, Direct}
}

// Rank returns the position of s in order, or len(order) when absent so
// unlisted sites sort after listed ones.
func Rank(order []Site, s Site) int {
	for i, o := range order {
		if o == s {
			return i
		}
	}
	return len(order)
}
