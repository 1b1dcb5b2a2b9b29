package adapter

import (
	"html"
	"strings"

	kit "transferbot/internal/transport"
)

const (
	textLimit    = 4000
	captionLimit = 1024

	timestampLayout = "2006-01-02 15:04:05 MST"
)

// accent circles and their approximate RGB
var accents = []struct {
	emoji string
	rgb   int
}{
	{"🔴", 0xDD2E44},
	{"🟠", 0xF4900C},
	{"🟡", 0xFDCB58},
	{"🟢", 0x78B159},
	{"🔵", 0x55ACEE},
	{"🟣", 0xAA8ED6},
	{"🟤", 0xC1694F},
	{"⚫", 0x31373D},
	{"⚪", 0xE6E7E8},
}

// accentEmoji approximates a card color, since Telegram has no colored
// message bars.
func accentEmoji(color int) string {
	if color <= 0 {
		return ""
	}
	best, bestDist := "", -1
	r, g, b := color>>16&0xFF, color>>8&0xFF, color&0xFF
	for _, a := range accents {
		dr, dg, db := r-(a.rgb>>16&0xFF), g-(a.rgb>>8&0xFF), b-(a.rgb&0xFF)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = a.emoji, d
		}
	}
	return best
}

// renderCard renders c as Telegram HTML.
func renderCard(c kit.Card) string {
	var b strings.Builder

	title := html.EscapeString(c.Title)
	if e := accentEmoji(c.Color); e != "" {
		title = e + " " + title
	}
	if c.Title != "" {
		b.WriteString("<b>" + title + "</b>\n")
	}
	if c.Description != "" {
		b.WriteString(html.EscapeString(c.Description) + "\n")
	}

	if len(c.Fields) > 0 {
		b.WriteString("\n")
		for _, f := range c.Fields {
			b.WriteString("<b>" + html.EscapeString(f.Name) + ":</b> ")
			v := html.EscapeString(f.Value)
			if f.URL != "" {
				v = `<a href="` + html.EscapeString(f.URL) + `">` + v + "</a>"
			}
			b.WriteString(v + "\n")
		}
	}

	// Telegram has no message timestamp, so Timestamp stands in for a
	// missing footer.
	footer := c.Footer
	if footer == "" && !c.Timestamp.IsZero() {
		footer = c.Timestamp.UTC().Format(timestampLayout)
	}
	if footer != "" {
		b.WriteString("\n<i>" + html.EscapeString(footer) + "</i>")
	}
	return strings.TrimRight(b.String(), "\n")
}
