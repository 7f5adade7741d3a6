package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/marminbh/statuswatch/internal/models"
)

// Status inference over the plain-text rendering of an entry description:
// a fixed vocabulary first, then an explicit "status: <word>" label.
// First match wins.
var statusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(operational|degraded|partial|major|maintenance|outage|incident|investigating|monitoring|resolved)`),
	regexp.MustCompile(`(?i)status:\s*(\w+)`),
}

// Entry normalizes one parsed feed entry. Identity is the entry's id/guid;
// entries without one get a deterministic content hash of title+published,
// so repeated polls over an unchanged entry dedup against themselves.
func Entry(item *gofeed.Item, sourceName string, ingestedAt time.Time) models.Incident {
	id := item.GUID
	if id == "" {
		sum := md5.Sum([]byte(item.Title + item.Published))
		id = hex.EncodeToString(sum[:])
	}

	title := item.Title
	if title == "" {
		title = "Unknown Incident"
	}

	incident := models.Incident{
		ID:          id,
		SourceName:  sourceName,
		Origin:      models.OriginPoll,
		Title:       title,
		Status:      "Unknown",
		Description: item.Description,
		Components:  []string{},
		Link:        item.Link,
	}

	if item.Description != "" {
		incident.Components, incident.Status = inspectDescription(item.Description)
	}

	incident.OccurredAt, _ = ParseEventTime(item.Published, ingestedAt)

	return incident
}

// inspectDescription extracts component candidates and an inferred status
// from the HTML-bearing description of a feed entry. Every emphasized span
// is a component candidate unless its text opens with "status" — those are
// status labels, not component names.
func inspectDescription(description string) ([]string, string) {
	components := []string{}
	status := "Unknown"

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		// Not parseable as HTML; fall back to pattern-matching the raw text.
		if inferred, ok := inferStatus(description); ok {
			status = inferred
		}
		return components, status
	}

	doc.Find("strong, b").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		if strings.HasPrefix(strings.ToLower(text), "status") {
			return
		}
		components = append(components, text)
	})

	if inferred, ok := inferStatus(doc.Text()); ok {
		status = inferred
	}

	return components, status
}

func inferStatus(text string) (string, bool) {
	for _, pattern := range statusPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			return titleCase(match[1]), true
		}
	}
	return "", false
}

// titleCase capitalizes the first letter and lowers the rest, matching how
// matched status tokens are presented ("degraded" -> "Degraded").
func titleCase(word string) string {
	if word == "" {
		return word
	}
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
