package kprotocol

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/thesheepcat/k-transaction-processor/internal/klog"
	"github.com/thesheepcat/k-transaction-processor/internal/perrors"
)

// Prefix is the K-protocol envelope magic string. Its raw bytes
// (0x6b 0x3a 0x31 0x3a) are also what the NOTIFY trigger tests for (§6.3).
const Prefix = "k:1:"

var logger = klog.Named("kprotocol")

// Parse decodes a raw UTF-8 transaction payload into an Action. It never
// returns an error for an unrecognized action name — that produces an
// *Unknown instead, which the caller is expected to log and drop (§4.2).
// A non-nil error here is always a ClassProtocol error: missing prefix, an
// empty action name, an action with too few fields, or an invalid
// enumerated value (vote, blocking_action, following_action).
func Parse(payload string) (Action, error) {
	payload = filterControlChars(payload)

	if !strings.HasPrefix(payload, Prefix) {
		return nil, perrors.New(perrors.ClassProtocol, "payload missing k:1: prefix")
	}
	rest := payload[len(Prefix):]
	parts := strings.Split(rest, ":")
	if len(parts) == 0 || parts[0] == "" {
		return nil, perrors.New(perrors.ClassProtocol, "empty action name")
	}

	name := parts[0]
	switch name {
	case string(KindBroadcast):
		return parseBroadcast(parts)
	case string(KindPost):
		return parsePost(parts)
	case string(KindReply):
		return parseReply(parts)
	case string(KindQuote):
		return parseQuote(parts)
	case string(KindVote):
		return parseVote(parts)
	case string(KindBlock):
		return parseBlock(parts)
	case string(KindFollow):
		return parseFollow(parts)
	default:
		return &Unknown{Name: name}, nil
	}
}

// filterControlChars removes control characters other than tab, newline and
// carriage return, per §4.2, before the payload is split on ':'.
func filterControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseMentionedPubkeys parses the trailing JSON-array-of-strings field
// that post/reply carry. An absent field is an empty list; a malformed
// array degrades to an empty list with a warning rather than aborting
// the parse (§4.2). The raw substring is preserved for signature
// reconstruction regardless of whether it parses (§9).
func parseMentionedPubkeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.Warnw("malformed mentioned_pubkeys JSON, treating as empty",
			"raw", raw, "err", err)
		return nil
	}
	return out
}

// action:sender_pubkey:sender_signature:nickname_b64:profile_image_b64:message_b64
func parseBroadcast(parts []string) (Action, error) {
	if len(parts) < 6 {
		return nil, perrors.New(perrors.ClassProtocol, "broadcast: expected 6 fields")
	}
	b := &Broadcast{
		SenderPubkey:    parts[1],
		SenderSignature: parts[2],
		NicknameB64:     parts[3],
		MessageB64:      parts[5],
	}
	if parts[4] != "" {
		b.ProfileImageB64 = parts[4]
		b.HasProfileImage = true
	}
	return b, nil
}

// action:sender_pubkey:sender_signature:message_b64[:mentioned_pubkeys_json]
func parsePost(parts []string) (Action, error) {
	if len(parts) < 4 {
		return nil, perrors.New(perrors.ClassProtocol, "post: expected at least 4 fields")
	}
	p := &Post{
		SenderPubkey:    parts[1],
		SenderSignature: parts[2],
		MessageB64:      parts[3],
	}
	if len(parts) > 4 {
		p.MentionedPubkeysRaw = parts[4]
		p.MentionedPubkeys = parseMentionedPubkeys(parts[4])
	}
	return p, nil
}

// action:sender_pubkey:sender_signature:post_id:message_b64[:mentioned_pubkeys_json]
func parseReply(parts []string) (Action, error) {
	if len(parts) < 5 {
		return nil, perrors.New(perrors.ClassProtocol, "reply: expected at least 5 fields")
	}
	r := &Reply{
		SenderPubkey:    parts[1],
		SenderSignature: parts[2],
		PostID:          parts[3],
		MessageB64:      parts[4],
	}
	if len(parts) > 5 {
		r.MentionedPubkeysRaw = parts[5]
		r.MentionedPubkeys = parseMentionedPubkeys(parts[5])
	}
	return r, nil
}

// action:sender_pubkey:sender_signature:content_id:message_b64:mentioned_pubkey
func parseQuote(parts []string) (Action, error) {
	if len(parts) < 6 {
		return nil, perrors.New(perrors.ClassProtocol, "quote: expected 6 fields")
	}
	return &Quote{
		SenderPubkey:    parts[1],
		SenderSignature: parts[2],
		ContentID:       parts[3],
		MessageB64:      parts[4],
		MentionedPubkey: parts[5],
	}, nil
}

// action:sender_pubkey:sender_signature:post_id:vote:mentioned_pubkey
func parseVote(parts []string) (Action, error) {
	if len(parts) < 6 {
		return nil, perrors.New(perrors.ClassProtocol, "vote: expected 6 fields")
	}
	v := Vote(parts[4])
	if v != VoteUpvote && v != VoteDownvote {
		return nil, perrors.New(perrors.ClassProtocol, "vote: invalid vote value "+parts[4])
	}
	return &VoteAction{
		SenderPubkey:    parts[1],
		SenderSignature: parts[2],
		PostID:          parts[3],
		Vote:            v,
		MentionedPubkey: parts[5],
	}, nil
}

// action:sender_pubkey:sender_signature:blocking_action:blocked_user_pubkey
func parseBlock(parts []string) (Action, error) {
	if len(parts) < 5 {
		return nil, perrors.New(perrors.ClassProtocol, "block: expected 5 fields")
	}
	ba := BlockingAction(parts[3])
	if ba != BlockingActionBlock && ba != BlockingActionUnblock {
		return nil, perrors.New(perrors.ClassProtocol, "block: invalid blocking_action "+parts[3])
	}
	return &BlockAction{
		SenderPubkey:      parts[1],
		SenderSignature:   parts[2],
		BlockingAction:    ba,
		BlockedUserPubkey: parts[4],
	}, nil
}

// action:sender_pubkey:sender_signature:following_action:followed_user_pubkey
func parseFollow(parts []string) (Action, error) {
	if len(parts) < 5 {
		return nil, perrors.New(perrors.ClassProtocol, "follow: expected 5 fields")
	}
	fa := FollowingAction(parts[3])
	if fa != FollowingActionFollow && fa != FollowingActionUnfollow {
		return nil, perrors.New(perrors.ClassProtocol, "follow: invalid following_action "+parts[3])
	}
	return &FollowAction{
		SenderPubkey:       parts[1],
		SenderSignature:    parts[2],
		FollowingAction:    fa,
		FollowedUserPubkey: parts[4],
	}, nil
}
