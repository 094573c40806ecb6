package host

import "strings"

// Color of a chat component. The host maps these onto its own text format.
type Color int

const (
	White Color = iota
	Red
	Yellow
	Green
	Gold
	Blue
	Gray
	Aqua
)

// Component is one colored segment of a chat message. Segments with a
// ClickURL render as clickable links labeled with Text.
type Component struct {
	Color     Color
	Text      string
	ClickURL  string
	HoverText string
}

func Text(color Color, text string) Component {
	return Component{Color: color, Text: text}
}

// Link returns a clickable component labeled with text.
func Link(color Color, text, url string) Component {
	return Component{Color: color, Text: text, ClickURL: url}
}

// Plain flattens components into an uncolored string, for logs and tests.
func Plain(parts ...Component) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
