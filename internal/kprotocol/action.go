// Package kprotocol implements the K-protocol wire format: parsing a raw
// transaction payload into a typed action (C2 Payload Parser) and verifying
// the Schnorr signature over its canonical signed message (C1 Signature
// Verifier). Both halves are pure — no I/O, no database, no network.
package kprotocol

// Kind names the seven K-protocol action variants plus the Unknown escape
// hatch for forward-compatible action names the parser doesn't recognize.
type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindPost      Kind = "post"
	KindReply     Kind = "reply"
	KindQuote     Kind = "quote"
	KindVote      Kind = "vote"
	KindBlock     Kind = "block"
	KindFollow    Kind = "follow"
	KindUnknown   Kind = "unknown"
)

// Vote enumerates the two values the wire format allows in a vote action.
type Vote string

const (
	VoteUpvote   Vote = "upvote"
	VoteDownvote Vote = "downvote"
)

// BlockingAction enumerates the two values the wire format allows in a
// block action.
type BlockingAction string

const (
	BlockingActionBlock   BlockingAction = "block"
	BlockingActionUnblock BlockingAction = "unblock"
)

// FollowingAction enumerates the two values the wire format allows in a
// follow action.
type FollowingAction string

const (
	FollowingActionFollow   FollowingAction = "follow"
	FollowingActionUnfollow FollowingAction = "unfollow"
)

// Action is the closed sum of K-protocol actions. A type switch on the
// concrete type (or Kind()) drives both verification and materialization,
// per the teacher's tagged-enum-over-dispatch-table idiom (§9 Design Notes).
type Action interface {
	Kind() Kind
	SenderPubkeyHex() string
	SenderSignatureHex() string
	// SignedMessage reconstructs the exact UTF-8 byte sequence the sender
	// signed, per the §6.1 field order for this action's kind.
	SignedMessage() string
}

// Broadcast publishes the sender's current profile. At most one survives
// per sender in the materialized store (§3.3, §4.4).
type Broadcast struct {
	SenderPubkey    string
	SenderSignature string
	NicknameB64     string
	ProfileImageB64 string // empty when absent
	HasProfileImage bool
	MessageB64      string
}

func (a *Broadcast) Kind() Kind                { return KindBroadcast }
func (a *Broadcast) SenderPubkeyHex() string    { return a.SenderPubkey }
func (a *Broadcast) SenderSignatureHex() string { return a.SenderSignature }
func (a *Broadcast) SignedMessage() string {
	return a.NicknameB64 + ":" + a.ProfileImageB64 + ":" + a.MessageB64
}

// Post is an original piece of content with zero or more mentions.
type Post struct {
	SenderPubkey    string
	SenderSignature string
	MessageB64      string
	// MentionedPubkeysRaw is the exact JSON-array substring from the wire
	// payload, preserved byte-for-byte because the signed message must be
	// reconstructed from it verbatim (§6.1, §9 "Exact-bytes signature
	// reconstruction"). Empty when the trailing field was absent.
	MentionedPubkeysRaw string
	// MentionedPubkeys is the parsed form, used by the materializer. Empty
	// when MentionedPubkeysRaw was absent or failed to parse as JSON.
	MentionedPubkeys []string
}

func (a *Post) Kind() Kind                { return KindPost }
func (a *Post) SenderPubkeyHex() string    { return a.SenderPubkey }
func (a *Post) SenderSignatureHex() string { return a.SenderSignature }
func (a *Post) SignedMessage() string {
	return a.MessageB64 + ":" + a.MentionedPubkeysRaw
}

// Reply responds to a prior post or reply.
type Reply struct {
	SenderPubkey         string
	SenderSignature      string
	PostID               string
	MessageB64           string
	MentionedPubkeysRaw  string
	MentionedPubkeys     []string
}

func (a *Reply) Kind() Kind                { return KindReply }
func (a *Reply) SenderPubkeyHex() string    { return a.SenderPubkey }
func (a *Reply) SenderSignatureHex() string { return a.SenderSignature }
func (a *Reply) SignedMessage() string {
	return a.PostID + ":" + a.MessageB64 + ":" + a.MentionedPubkeysRaw
}

// Quote references prior content with a single mention, unlike post/reply's
// list (§9 open question: "Mentions on quote").
type Quote struct {
	SenderPubkey     string
	SenderSignature  string
	ContentID        string
	MessageB64       string
	MentionedPubkey  string
}

func (a *Quote) Kind() Kind                { return KindQuote }
func (a *Quote) SenderPubkeyHex() string    { return a.SenderPubkey }
func (a *Quote) SenderSignatureHex() string { return a.SenderSignature }
func (a *Quote) SignedMessage() string {
	return a.ContentID + ":" + a.MessageB64 + ":" + a.MentionedPubkey
}

// VoteAction casts an upvote or downvote on a post.
type VoteAction struct {
	SenderPubkey     string
	SenderSignature  string
	PostID           string
	Vote             Vote
	MentionedPubkey  string
}

func (a *VoteAction) Kind() Kind                { return KindVote }
func (a *VoteAction) SenderPubkeyHex() string    { return a.SenderPubkey }
func (a *VoteAction) SenderSignatureHex() string { return a.SenderSignature }
func (a *VoteAction) SignedMessage() string {
	return a.PostID + ":" + string(a.Vote) + ":" + a.MentionedPubkey
}

// BlockAction toggles whether the sender blocks another user.
type BlockAction struct {
	SenderPubkey      string
	SenderSignature   string
	BlockingAction    BlockingAction
	BlockedUserPubkey string
}

func (a *BlockAction) Kind() Kind                { return KindBlock }
func (a *BlockAction) SenderPubkeyHex() string    { return a.SenderPubkey }
func (a *BlockAction) SenderSignatureHex() string { return a.SenderSignature }
func (a *BlockAction) SignedMessage() string {
	return string(a.BlockingAction) + ":" + a.BlockedUserPubkey
}

// FollowAction toggles whether the sender follows another user.
type FollowAction struct {
	SenderPubkey       string
	SenderSignature    string
	FollowingAction    FollowingAction
	FollowedUserPubkey string
}

func (a *FollowAction) Kind() Kind                { return KindFollow }
func (a *FollowAction) SenderPubkeyHex() string    { return a.SenderPubkey }
func (a *FollowAction) SenderSignatureHex() string { return a.SenderSignature }
func (a *FollowAction) SignedMessage() string {
	return string(a.FollowingAction) + ":" + a.FollowedUserPubkey
}

// Unknown carries an unrecognized action name through the pipeline so the
// worker can log and drop it without aborting the whole payload (§4.2).
type Unknown struct {
	Name string
}

func (a *Unknown) Kind() Kind                { return KindUnknown }
func (a *Unknown) SenderPubkeyHex() string    { return "" }
func (a *Unknown) SenderSignatureHex() string { return "" }
func (a *Unknown) SignedMessage() string      { return "" }
