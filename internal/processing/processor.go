package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	whitespace  = regexp.MustCompile(`[\s\p{Z}]+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// StripHTML returns the visible text of an HTML fragment. Input that is not
// markup comes back unchanged apart from entity decoding.
func StripHTML(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return input
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return html.UnescapeString(input)
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// NormalizeText strips markup and squeezes whitespace but keeps punctuation,
// so salary figures like "£50,000 - £80,000" survive.
func NormalizeText(input string) string {
	if input == "" {
		return ""
	}
	text := StripHTML(input)
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	decoded = strings.TrimSpace(decoded)
	return decoded
}

// Tokens returns the lower-cased words of text with URLs and punctuation removed.
func Tokens(text string) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}
	fields := strings.Fields(clean)
	out := fields[:0]
	for _, token := range fields {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if token != "" {
			out = append(out, token)
		}
	}
	return out
}

// Truncate cuts s to at most n runes, appending an ellipsis when shortened.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}

// DedupeKey identifies a listing by title and company, ignoring case and padding.
func DedupeKey(title, company string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(company))
}

// BuildRecordID hashes the most stable fields to form deterministic IDs for
// listings that arrive without a source identifier.
func BuildRecordID(title, company, posted string) string {
	s := sha1.Sum([]byte(title + "|" + company + "|" + posted))
	return hex.EncodeToString(s[:])
}
