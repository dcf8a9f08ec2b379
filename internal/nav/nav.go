// Package nav holds the sidebar layout: a fixed ordered list of routes and
// the marking of whichever one is active.
package nav

type Entry struct {
	Path   string `json:"path"`
	Label  string `json:"label"`
	Icon   string `json:"icon"`
	Active bool   `json:"active"`
}

var entries = []Entry{
	{Path: "/dashboard", Label: "Dashboard", Icon: "layout-dashboard"},
	{Path: "/charts", Label: "Charts", Icon: "candlestick-chart"},
	{Path: "/journal", Label: "Trade Journal", Icon: "notebook-pen"},
	{Path: "/upload", Label: "Screenshots", Icon: "image-up"},
	{Path: "/settings", Label: "Settings", Icon: "settings"},
}

// Entries returns the sidebar entries in display order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)

	return out
}

// WithActive returns the sidebar entries with the entry matching path, if
// any, marked active.
func WithActive(path string) []Entry {
	out := Entries()
	for i := range out {
		out[i].Active = out[i].Path == path
	}

	return out
}
