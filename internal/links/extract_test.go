// ABOUTME: Tests for link extraction
// ABOUTME: Covers markup-form links, bare URLs, malformed input, and ordering

package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_NoURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"plain text", "just chatting about nothing in particular"},
		{"lone angle brackets", "a < b and b > c"},
		{"mention markup", "hey <@U12345> look at this"},
		{"channel markup", "see <#C12345|general>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Extract(tt.text))
		})
	}
}

func TestExtract_MarkupForm(t *testing.T) {
	got := Extract("check this out <http://foo.com/x|foo.com/x>")
	require.Len(t, got, 1)
	assert.Equal(t, "http://foo.com/x", got[0].URL)
	assert.Equal(t, "foo.com", got[0].Domain)
}

func TestExtract_MarkupFormNoLabel(t *testing.T) {
	got := Extract("see <https://Example.COM/path?q=1>")
	require.Len(t, got, 1)
	assert.Equal(t, "https://Example.COM/path?q=1", got[0].URL)
	assert.Equal(t, "example.com", got[0].Domain)
}

func TestExtract_BareURL(t *testing.T) {
	got := Extract("reading news.ycombinator.com/item?id=1 today")
	require.Len(t, got, 1)
	assert.Equal(t, "news.ycombinator.com/item?id=1", got[0].URL)
	assert.Equal(t, "news.ycombinator.com", got[0].Domain)
}

func TestExtract_MultipleOrdered(t *testing.T) {
	got := Extract("<http://a.com/1|a> and also http://b.org/2 here")
	require.Len(t, got, 2)
	assert.Equal(t, "a.com", got[0].Domain)
	assert.Equal(t, "b.org", got[1].Domain)
}

func TestExtract_Deduplicates(t *testing.T) {
	got := Extract("<http://a.com/1|a> twice <http://a.com/1|a>")
	assert.Len(t, got, 1)
}

func TestExtract_TrailingPunctuation(t *testing.T) {
	got := Extract("look at https://foo.com/bar.")
	require.Len(t, got, 1)
	assert.Equal(t, "https://foo.com/bar", got[0].URL)
}

func TestExtract_SkipsMalformed(t *testing.T) {
	// A malformed markup URL must not fail the whole extraction.
	got := Extract("<http://%zz|bad> but <http://ok.com/x|fine>")
	require.Len(t, got, 1)
	assert.Equal(t, "ok.com", got[0].Domain)
}
