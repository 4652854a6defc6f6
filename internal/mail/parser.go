// Package mail polls an IMAP mailbox for wishlist requests and turns them
// into item-creation requests. It owns no lifecycle logic.
package mail

import (
	"regexp"
	"strings"
)

// Request is one author/title pair extracted from an email.
type Request struct {
	Author string
	Title  string
}

// linePattern matches `author - "title"` with optional smart quotes and an
// optional `> shelf` suffix, which is accepted and ignored.
var linePattern = regexp.MustCompile(`([^-"]+?)\s*-\s*["“]([^"”]+)["”]\s*(?:>\s*.+?)?\s*$`)

// prefixPattern strips request prefixes like `wishlist:` or `add:`.
var prefixPattern = regexp.MustCompile(`(?i)^(wishlist|voeg toe|add):\s*`)

// ExtractRequests pulls wishlist requests out of an email subject and
// plain-text body. Body lines quoted from a reply (starting with ">") are
// skipped.
func ExtractRequests(subject, body string) []Request {
	var requests []Request

	if r, ok := parseLine(prefixPattern.ReplaceAllString(strings.TrimSpace(subject), "")); ok {
		requests = append(requests, r)
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ">") {
			continue
		}
		line = prefixPattern.ReplaceAllString(line, "")
		if r, ok := parseLine(line); ok {
			requests = append(requests, r)
		}
	}

	return requests
}

func parseLine(line string) (Request, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Request{}, false
	}
	author := strings.TrimSpace(m[1])
	title := strings.TrimSpace(m[2])
	if author == "" || title == "" {
		return Request{}, false
	}
	return Request{Author: author, Title: title}, true
}

// senderAllowed reports whether the sender passes the whitelist. An empty
// whitelist allows everyone.
func senderAllowed(sender string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	sender = strings.ToLower(sender)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && strings.Contains(sender, a) {
			return true
		}
	}
	return false
}
