// Package hashtag implements the secondary hashtag extraction described in
// §4.3: base64-decode a message, find Unicode hashtag tokens bounded by
// whitespace/punctuation, and deduplicate them case-insensitively.
package hashtag

import (
	"encoding/base64"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/thesheepcat/k-transaction-processor/internal/klog"
)

var logger = klog.Named("hashtag")

// maxLength is the longest tag body the extractor accepts, per §4.3 step 2
// and the boundary test in §8 ("exactly 30 ... accepted; 31 is rejected").
const maxLength = 30

// validHashtag matches '#' followed by 1..=30 Unicode letters/digits/'_'.
// Boundary validity (what comes immediately before/after the match) is
// checked separately because regexp's \b doesn't see Unicode word classes
// the way §4.3 defines them.
var validHashtag = regexp.MustCompile(`#[\p{L}\p{N}_]{1,30}`)

// allHashPrefixed matches any run of non-whitespace starting with '#', used
// only for the diagnostic second pass over rejected patterns.
var allHashPrefixed = regexp.MustCompile(`#\S+`)

// rejectReason classifies why a hash-prefixed token didn't qualify as a
// valid hashtag, for the diagnostic warning in §4.3 step 5.
type rejectReason string

const (
	reasonEmpty            rejectReason = "empty"
	reasonTooLong          rejectReason = "too_long"
	reasonInvalidChars     rejectReason = "invalid_characters"
	reasonInvalidBoundary  rejectReason = "invalid_boundaries"
)

// Extract decodes message as standard base64 and returns the set of
// lowercase, deduplicated hashtags it contains, per §4.3. Decode or UTF-8
// failure yields an empty set with a warning, never an error: hashtag
// extraction is a best-effort secondary index, not a required field.
func Extract(messageB64 string) map[string]struct{} {
	decoded, err := base64.StdEncoding.DecodeString(messageB64)
	if err != nil {
		logger.Warnw("failed to base64-decode message for hashtag extraction", "err", err)
		return nil
	}
	if !utf8.Valid(decoded) {
		logger.Warnw("decoded message is not valid UTF-8, skipping hashtag extraction")
		return nil
	}
	text := string(decoded)

	valid := make(map[string]struct{})
	for _, loc := range validHashtag.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if !validBoundary(text, start, end) {
			continue
		}
		tag := text[start+1 : end] // strip '#'
		valid[strings.ToLower(tag)] = struct{}{}
	}

	warnInvalidPatterns(text, valid)

	return valid
}

// validBoundary implements §4.3 step 3: the character before '#' must be
// start-of-string or whitespace; the character after the match must be
// end-of-string, whitespace, or one of . , ; ! ?
func validBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if r == utf8.RuneError || !unicode.IsSpace(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if r == utf8.RuneError {
			return false
		}
		if !unicode.IsSpace(r) && !strings.ContainsRune(".,;!?", r) {
			return false
		}
	}
	return true
}

// warnInvalidPatterns is the diagnostic-only second pass of §4.3 step 5: it
// classifies every hash-prefixed token that did not end up in valid and
// logs why, without altering the returned set.
func warnInvalidPatterns(text string, valid map[string]struct{}) {
	for _, match := range allHashPrefixed.FindAllString(text, -1) {
		tag := match[1:]
		lower := strings.ToLower(tag)
		if _, ok := valid[lower]; ok {
			continue
		}

		switch {
		case tag == "":
			logger.Warnw("invalid hashtag pattern", "pattern", match, "reason", reasonEmpty)
		case utf8.RuneCountInString(tag) > maxLength:
			logger.Warnw("invalid hashtag pattern", "pattern", match, "reason", reasonTooLong)
		case !allLetterDigitUnderscore(tag):
			logger.Warnw("invalid hashtag pattern", "pattern", match, "reason", reasonInvalidChars)
		default:
			logger.Warnw("invalid hashtag pattern", "pattern", match, "reason", reasonInvalidBoundary)
		}
	}
}

// Slice returns the hashtags in a set as a sorted slice, for callers that
// need a stable order (e.g. binding a text[] array parameter).
func Slice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func allLetterDigitUnderscore(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
