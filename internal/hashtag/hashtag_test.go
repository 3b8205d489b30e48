package hashtag

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func keys(set map[string]struct{}) []string {
	return Slice(set)
}

func TestExtract_SingleHashtag(t *testing.T) {
	got := Extract(b64("Hello #world"))
	assert.Equal(t, []string{"world"}, keys(got))
}

func TestExtract_MultipleHashtags(t *testing.T) {
	got := Extract(b64("Check #rust and #programming"))
	assert.Equal(t, []string{"programming", "rust"}, keys(got))
}

func TestExtract_CaseInsensitiveDedup(t *testing.T) {
	got := Extract(b64("#Rust #RUST #rust"))
	assert.Equal(t, []string{"rust"}, keys(got))
}

func TestExtract_AtStartAndEnd(t *testing.T) {
	assert.Equal(t, []string{"start"}, keys(Extract(b64("#start of message"))))
	assert.Equal(t, []string{"end"}, keys(Extract(b64("end of message #end"))))
}

func TestExtract_Punctuation(t *testing.T) {
	got := Extract(b64("Hello #world! How are you?"))
	assert.Equal(t, []string{"world"}, keys(got))
}

func TestExtract_RejectsNoSpaceBefore(t *testing.T) {
	got := Extract(b64("word#tag"))
	assert.Empty(t, got)
}

func TestExtract_RejectsURLFragment(t *testing.T) {
	got := Extract(b64("Visit google.com#section"))
	assert.Empty(t, got)
}

func TestExtract_BoundaryLength(t *testing.T) {
	exactly30 := "a12345678901234567890123456789"
	require.Len(t, exactly30, 30)
	got := Extract(b64("#" + exactly30))
	assert.Equal(t, []string{exactly30}, keys(got))

	thirtyOne := exactly30 + "x"
	require.Len(t, thirtyOne, 31)
	got = Extract(b64("#" + thirtyOne))
	assert.Empty(t, got)
}

func TestExtract_NumericHashtags(t *testing.T) {
	got := Extract(b64("#2024 and #123"))
	assert.Equal(t, []string{"123", "2024"}, keys(got))
}

func TestExtract_Underscore(t *testing.T) {
	got := Extract(b64("Check #rust_lang and #web_dev"))
	assert.Equal(t, []string{"rust_lang", "web_dev"}, keys(got))
}

func TestExtract_EmptyAndNoHashtags(t *testing.T) {
	assert.Empty(t, Extract(b64("")))
	assert.Empty(t, Extract(b64("This message has no hashtags")))
	assert.Empty(t, Extract(b64("Just a # symbol")))
}

func TestExtract_MixedValidAndInvalid(t *testing.T) {
	msg := "#rust and word#tag plus #programming and #verylongtagthatshouldberejectedbecauseitstoolong123"
	got := Extract(b64(msg))
	assert.ElementsMatch(t, []string{"rust", "programming"}, keys(got))
}

func TestExtract_Unicode(t *testing.T) {
	assert.ElementsMatch(t, []string{"café", "résumé"}, keys(Extract(b64("Bonjour #café et #résumé"))))
	assert.ElementsMatch(t, []string{"москва", "русский"}, keys(Extract(b64("Привет #москва and #русский"))))
	assert.ElementsMatch(t, []string{"日本語", "東京"}, keys(Extract(b64("こんにちは #日本語 and #東京"))))
}

func TestExtract_InvalidBase64(t *testing.T) {
	assert.Empty(t, Extract("not-valid-base64!!!"))
}
