package domain

import (
	"regexp"
	"strings"
)

// MessageRef identifies one notice message held by the mailbox capability.
// The message body itself stays with the mailbox; the monitor only ever
// carries the id.
type MessageRef struct {
	ID string
}

// MessageBody is a fetched notice message: the decoded HTML body plus the
// sender, which the monitor checks against the expected notifier address.
type MessageBody struct {
	ID   string
	From string
	HTML string
}

// Notice is one unit of work for the ingestion pipeline: the candidate
// object names extracted from a single notice message. Enqueued strictly
// before the message is marked read, so a crash in between replays the
// message; downstream ingestion is an idempotent upsert by name.
type Notice struct {
	MessageID string
	Names     []string
}

// anchorRe captures anchor elements and their inner text. TNS notices link
// every object name, so anchor text is the candidate set.
var anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=[^>]*>(.*?)</a>`)

// tagRe strips any markup nested inside an anchor.
var tagRe = regexp.MustCompile(`<[^>]*>`)

// ExtractCandidates returns the non-empty anchor texts of an HTML notice
// body, in document order. A body without anchors yields an empty list, not
// an error.
func ExtractCandidates(html string) []string {
	var names []string
	for _, m := range anchorRe.FindAllStringSubmatch(html, -1) {
		text := tagRe.ReplaceAllString(m[1], "")
		text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
		if text != "" {
			names = append(names, text)
		}
	}
	return names
}

var spaceRe = regexp.MustCompile(`\s+`)
