package ingest

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"submit_bot/internal/model"
)

// Field caps for ingested posts, in runes.
const (
	maxTitle    = 200
	maxNote     = 2000
	maxCaption  = 4000
	maxFileName = 500
	maxTags     = 500
	maxLink     = 500
)

// Post is a channel message as delivered by the transport.
type Post struct {
	MessageID       int64
	ChatID          int64
	ChatUsername    string
	Text            string
	Date            string
	Attachments     []model.Attachment
	AudioTitle      string
	AudioPerformer  string
	MediaGroupID    string
	ForwardFromChat string
	ForwardFromUser string
	Edited          bool
}

var (
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)
	blankRuns     = regexp.MustCompile(`[ \t]+`)
	newlineRuns   = regexp.MustCompile(`\n{3,}`)
	hashtagRe     = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	bracketTagRe  = regexp.MustCompile(`\[([^\]]+)\]`)
	urlRe         = regexp.MustCompile(`https?://[^\s)]+`)
	titleMarkerRe = regexp.MustCompile(`(?im)(?:标题|title)[:：]\s*(.+?)$`)
	titleHeaders  = []*regexp.Regexp{
		regexp.MustCompile(`^【(.+?)】`),
		regexp.MustCompile(`^\[(.+?)\]`),
		regexp.MustCompile(`^(.+?)[:：]\s*\n`),
	}
	sentenceEndRe = regexp.MustCompile(`[。！？.!?]`)
)

// cleanText strips control characters, normalizes line breaks and runs of
// blanks, and truncates to max runes when max is positive.
func cleanText(s string, max int) string {
	if s == "" {
		return ""
	}
	s = controlChars.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = strings.TrimRightFunc(string([]rune(s)[:max]), func(r rune) bool { return r == ' ' || r == '\n' })
	}
	return s
}

// extractTags collects #hashtags and single-word [bracket] tokens,
// lower-cased and deduplicated, until their joined length reaches maxTags.
func extractTags(text string) []string {
	var candidates []string
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	for _, m := range bracketTagRe.FindAllStringSubmatch(text, -1) {
		tag := strings.TrimSpace(m[1])
		if tag != "" && utf8.RuneCountInString(tag) < 30 && !strings.ContainsAny(tag, " \t\n") {
			candidates = append(candidates, tag)
		}
	}

	var tags []string
	seen := make(map[string]bool)
	size := 0
	for _, c := range candidates {
		tag := "#" + strings.ToLower(c)
		if seen[tag] {
			continue
		}
		n := utf8.RuneCountInString(tag)
		if len(tags) > 0 {
			n++
		}
		if size+n > maxTags {
			break
		}
		seen[tag] = true
		size += n
		tags = append(tags, tag)
	}
	return tags
}

// extractLink returns the first http(s) URL in text. ok is false when a URL
// was found but does not parse.
func extractLink(text string) (link string, ok bool) {
	raw := urlRe.FindString(text)
	if raw == "" {
		return "", true
	}
	raw = strings.TrimRight(raw, ".,;!?)")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	return truncate(raw, maxLink), true
}

func stripTagsAndLinks(text string) string {
	text = hashtagRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func titleFromText(text string) string {
	if m := titleMarkerRe.FindStringSubmatch(text); m != nil {
		if t := strings.TrimSpace(m[1]); utf8.RuneCountInString(t) > 3 {
			return cleanText(t, maxTitle)
		}
	}
	for _, re := range titleHeaders {
		if m := re.FindStringSubmatch(text); m != nil {
			if t := strings.TrimSpace(m[1]); utf8.RuneCountInString(t) > 3 {
				return cleanText(t, maxTitle)
			}
		}
	}
	return ""
}

func titleFromFirstLine(text string) string {
	body := stripTagsAndLinks(text)
	if body == "" {
		return ""
	}
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) > maxTitle {
		head := string([]rune(line)[:maxTitle])
		if loc := sentenceEndRe.FindStringIndex(head); loc != nil {
			line = head[:loc[1]]
		}
	}
	return cleanText(line, maxTitle)
}

func titleFromFileName(name string) string {
	return cleanText(strings.TrimSuffix(name, path.Ext(name)), maxTitle)
}

func sanitizeFileName(name string) string {
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	return cleanText(name, maxFileName)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// parseDate accepts unix seconds or RFC 3339.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// Extract builds a record from a channel post. Malformed fields fall back to
// safe values; each fallback adds a warning.
func Extract(p Post, now time.Time) (*model.PublishedRecord, []string) {
	var warnings []string
	text := p.Text

	rec := &model.PublishedRecord{
		MessageID:   p.MessageID,
		DisplayName: "channel",
		Caption:     cleanText(text, maxCaption),
		Tags:        extractTags(text),
	}

	link, ok := extractLink(text)
	if !ok {
		warnings = append(warnings, "invalid link dropped")
	}
	rec.Link = link

	published, err := parseDate(p.Date)
	if err != nil {
		warnings = append(warnings, "publish time unparseable, using now")
		published = now.UTC()
	}
	rec.PublishedAt = published

	var media, docs int
	var fileName string
	for _, a := range p.Attachments {
		if a.Ref == "" {
			warnings = append(warnings, fmt.Sprintf("%s attachment without ref skipped", a.Kind))
			continue
		}
		if a.Kind == model.AttachDocument {
			docs++
		} else {
			media++
		}
		rec.AttachmentRefs = append(rec.AttachmentRefs, string(a.Kind)+":"+a.Ref)
		if fileName == "" && a.FileName != "" {
			fileName = a.FileName
		}
	}
	rec.ContentType = model.ContentTypeOf(media, docs)
	rec.FileName = sanitizeFileName(fileName)

	switch {
	case p.AudioTitle != "" && p.AudioPerformer != "":
		rec.Title = cleanText(p.AudioPerformer+" - "+p.AudioTitle, maxTitle)
	case p.AudioTitle != "":
		rec.Title = cleanText(p.AudioTitle, maxTitle)
	}
	if rec.Title == "" {
		rec.Title = titleFromText(text)
	}
	if rec.Title == "" && rec.FileName != "" {
		rec.Title = titleFromFileName(rec.FileName)
	}
	if rec.Title == "" {
		rec.Title = titleFromFirstLine(text)
	}
	if rec.Title == "" {
		rec.Title = fmt.Sprintf("Message %d", p.MessageID)
		warnings = append(warnings, "title missing, generated")
	}

	note := stripTagsAndLinks(text)
	switch {
	case p.ForwardFromChat != "":
		note = "Forwarded from: " + p.ForwardFromChat + "\n" + note
	case p.ForwardFromUser != "":
		note = "Forwarded from: " + p.ForwardFromUser + "\n" + note
	}
	rec.Note = cleanText(note, maxNote)

	return rec, warnings
}
