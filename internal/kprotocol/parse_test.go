package kprotocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesheepcat/k-transaction-processor/internal/perrors"
)

func TestParse_MissingPrefix(t *testing.T) {
	_, err := Parse("not-a-k-transaction")
	assert.Error(t, err)
	assert.Equal(t, perrors.ClassProtocol, perrors.ClassOf(err))
}

func TestParse_UnknownAction(t *testing.T) {
	a, err := Parse("k:1:frobnicate:pubkey:sig:x")
	require.NoError(t, err)
	u, ok := a.(*Unknown)
	require.True(t, ok)
	assert.Equal(t, "frobnicate", u.Name)
}

func TestParse_Broadcast(t *testing.T) {
	a, err := Parse("k:1:broadcast:pk:sig:bmlj:cHJvZg==:bXNn")
	require.NoError(t, err)
	b, ok := a.(*Broadcast)
	require.True(t, ok)
	assert.Equal(t, "pk", b.SenderPubkey)
	assert.Equal(t, "sig", b.SenderSignature)
	assert.Equal(t, "bmlj", b.NicknameB64)
	assert.True(t, b.HasProfileImage)
	assert.Equal(t, "cHJvZg==", b.ProfileImageB64)
	assert.Equal(t, "bXNn", b.MessageB64)
	assert.Equal(t, "bmlj:cHJvZg==:bXNn", b.SignedMessage())
}

func TestParse_Broadcast_NoProfileImage(t *testing.T) {
	a, err := Parse("k:1:broadcast:pk:sig:bmlj::bXNn")
	require.NoError(t, err)
	b := a.(*Broadcast)
	assert.False(t, b.HasProfileImage)
	assert.Equal(t, "", b.ProfileImageB64)
}

func TestParse_Broadcast_TooFewFields(t *testing.T) {
	_, err := Parse("k:1:broadcast:pk:sig:bmlj")
	assert.Error(t, err)
}

func TestParse_Post_WithoutMentions(t *testing.T) {
	a, err := Parse("k:1:post:pk:sig:bXNn")
	require.NoError(t, err)
	p := a.(*Post)
	assert.Equal(t, "bXNn", p.MessageB64)
	assert.Empty(t, p.MentionedPubkeysRaw)
	assert.Nil(t, p.MentionedPubkeys)
	assert.Equal(t, "bXNn:", p.SignedMessage())
}

func TestParse_Post_WithMentions(t *testing.T) {
	a, err := Parse(`k:1:post:pk:sig:bXNn:["abc","def"]`)
	require.NoError(t, err)
	p := a.(*Post)
	assert.Equal(t, `["abc","def"]`, p.MentionedPubkeysRaw)
	assert.Equal(t, []string{"abc", "def"}, p.MentionedPubkeys)
	assert.Equal(t, `bXNn:["abc","def"]`, p.SignedMessage())
}

func TestParse_Post_MalformedMentionsJSON(t *testing.T) {
	a, err := Parse(`k:1:post:pk:sig:bXNn:not-json`)
	require.NoError(t, err)
	p := a.(*Post)
	assert.Equal(t, "not-json", p.MentionedPubkeysRaw)
	assert.Nil(t, p.MentionedPubkeys)
}

func TestParse_Reply(t *testing.T) {
	a, err := Parse(`k:1:reply:pk:sig:postid123:bXNn:["abc"]`)
	require.NoError(t, err)
	r := a.(*Reply)
	assert.Equal(t, "postid123", r.PostID)
	assert.Equal(t, `postid123:bXNn:["abc"]`, r.SignedMessage())
}

func TestParse_Quote(t *testing.T) {
	a, err := Parse("k:1:quote:pk:sig:contentid:bXNn:mentioned")
	require.NoError(t, err)
	q := a.(*Quote)
	assert.Equal(t, "contentid:bXNn:mentioned", q.SignedMessage())
}

func TestParse_Vote_Valid(t *testing.T) {
	a, err := Parse("k:1:vote:pk:sig:postid:upvote:mentioned")
	require.NoError(t, err)
	v := a.(*VoteAction)
	assert.Equal(t, VoteUpvote, v.Vote)
	assert.Equal(t, "postid:upvote:mentioned", v.SignedMessage())
}

func TestParse_Vote_InvalidValue(t *testing.T) {
	_, err := Parse("k:1:vote:pk:sig:postid:sideways:mentioned")
	assert.Error(t, err)
}

func TestParse_Block_Valid(t *testing.T) {
	a, err := Parse("k:1:block:pk:sig:block:targetpk")
	require.NoError(t, err)
	b := a.(*BlockAction)
	assert.Equal(t, BlockingActionBlock, b.BlockingAction)
	assert.Equal(t, "block:targetpk", b.SignedMessage())
}

func TestParse_Block_Unblock(t *testing.T) {
	a, err := Parse("k:1:block:pk:sig:unblock:targetpk")
	require.NoError(t, err)
	assert.Equal(t, BlockingActionUnblock, a.(*BlockAction).BlockingAction)
}

func TestParse_Block_InvalidAction(t *testing.T) {
	_, err := Parse("k:1:block:pk:sig:ban:targetpk")
	assert.Error(t, err)
}

func TestParse_Follow_Valid(t *testing.T) {
	a, err := Parse("k:1:follow:pk:sig:follow:targetpk")
	require.NoError(t, err)
	f := a.(*FollowAction)
	assert.Equal(t, FollowingActionFollow, f.FollowingAction)
	assert.Equal(t, "follow:targetpk", f.SignedMessage())
}

func TestParse_ControlCharsFiltered(t *testing.T) {
	a, err := Parse("k:1:post:pk:sig:bXNn\x01\x02")
	require.NoError(t, err)
	p := a.(*Post)
	assert.Equal(t, "bXNn", p.MessageB64)
}
