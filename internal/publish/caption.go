package publish

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf16"

	"submit_bot/internal/model"
)

// Transport size ceilings, in UTF-16 code units.
const (
	CaptionLimit = 1024
	TextLimit    = 4096
)

// CaptionInput holds the fields rendered into a post caption.
type CaptionInput struct {
	Link          string
	Title         string
	Note          string
	Tags          []string
	Spoiler       bool
	OwnerID       int64
	DisplayName   string
	ShowSubmitter bool
}

// CaptionFor extracts the caption fields from a session.
func CaptionFor(s *model.Session, showSubmitter bool) CaptionInput {
	return CaptionInput{
		Link:          s.Link,
		Title:         s.Title,
		Note:          s.Note,
		Tags:          s.Tags,
		Spoiler:       s.Spoiler,
		OwnerID:       s.OwnerID,
		DisplayName:   s.DisplayName,
		ShowSubmitter: showSubmitter,
	}
}

// RenderCaption formats the caption as Telegram HTML. Empty fields are
// omitted without leaving blank lines.
func RenderCaption(in CaptionInput) string {
	var parts []string
	if in.Link != "" {
		parts = append(parts, "🔗 Link: "+html.EscapeString(in.Link))
	}
	if in.Title != "" {
		parts = append(parts, "🔖 Title:\n【"+html.EscapeString(in.Title)+"】")
	}
	if in.Note != "" {
		parts = append(parts, "📝 Note:\n"+html.EscapeString(in.Note))
	}
	if len(in.Tags) > 0 {
		parts = append(parts, "🏷 Tags: "+html.EscapeString(strings.Join(in.Tags, " ")))
	}
	body := strings.Join(parts, "\n")

	if in.Spoiler {
		if body != "" {
			body = "⚠️ Spoiler ⚠️\n" + body
		} else {
			body = "⚠️ Spoiler ⚠️"
		}
	}
	if in.ShowSubmitter && in.OwnerID != 0 {
		name := in.DisplayName
		if name == "" {
			name = fmt.Sprintf("user%d", in.OwnerID)
		}
		attribution := fmt.Sprintf(`Submitted by: <a href="tg://user?id=%d">@%s</a>`, in.OwnerID, html.EscapeString(name))
		if body != "" {
			body += "\n\n" + attribution
		} else {
			body = attribution
		}
	}
	return body
}

// RenderText renders the caption to fit within limit. The note and then the
// title are shortened; if that is not enough, tags, link and attribution are
// dropped in that order. Markup is never cut.
func RenderText(in CaptionInput, limit int) string {
	text := RenderCaption(in)
	for _, field := range []*string{&in.Note, &in.Title} {
		over := Length(text) - limit
		if over <= 0 {
			return text
		}
		*field = shorten(*field, over)
		text = RenderCaption(in)
	}
	drops := []func(){
		func() { in.Tags = nil },
		func() { in.Link = "" },
		func() { in.ShowSubmitter = false },
	}
	for _, drop := range drops {
		if Length(text) <= limit {
			return text
		}
		drop()
		text = RenderCaption(in)
	}
	return text
}

// shorten removes at least over+1 UTF-16 units from the end of s and marks
// the cut with an ellipsis.
func shorten(s string, over int) string {
	r := []rune(s)
	cut := 0
	for len(r) > 0 && cut <= over {
		cut += utf16.RuneLen(r[len(r)-1])
		r = r[:len(r)-1]
	}
	if len(r) == 0 {
		return ""
	}
	return string(r) + "…"
}

// Length returns the size of the text an HTML caption displays, in UTF-16
// code units, the unit the transport uses for its limits. Tags do not count
// and an entity counts as the character it encodes.
func Length(s string) int {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	n := 0
	for _, r := range html.UnescapeString(b.String()) {
		n += utf16.RuneLen(r)
	}
	return n
}
