package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyStringCanonical(t *testing.T) {
	a := Key{Domain: "topics", Kind: KindList, Params: map[string]string{"page": "1", "search": "go", "status": ""}}
	b := NewKey("topics", KindList).With("search", "go").With("page", "1")
	assert.Equal(t, "topics/list?page=1&search=go", a.String())
	assert.Equal(t, a.String(), b.String())

	assert.NotEqual(t, a.String(), a.With("page", "2").String())
	assert.Equal(t, "topics/list", NewKey("topics", KindList).With("search", "  ").String())
}

func TestKeyStringNormalizesUnicode(t *testing.T) {
	composed := NewKey("questions", KindList).With("search", "caf\u00e9")
	decomposed := NewKey("questions", KindList).With("search", "cafe\u0301")
	assert.Equal(t, composed.String(), decomposed.String())

	raw := Key{Domain: "questions", Kind: KindList, Params: map[string]string{"search": " cafe\u0301 "}}
	assert.Equal(t, composed.String(), raw.String())
}

func TestKeyWithDoesNotAlias(t *testing.T) {
	base := NewKey("topics", KindList).With("page", "1")
	_ = base.With("page", "2")
	assert.Equal(t, "1", base.Params["page"])
}

func TestKeyMatches(t *testing.T) {
	detail := NewKey("questions", KindDetail).With("id", "q1")
	list := NewKey("questions", KindList).With("topicId", "t1")

	assert.True(t, detail.Matches(Key{}))
	assert.True(t, detail.Matches(NewKey("questions", "")))
	assert.True(t, detail.Matches(NewKey("questions", KindDetail)))
	assert.True(t, detail.Matches(NewKey("questions", KindDetail).With("id", "q1")))
	assert.False(t, detail.Matches(NewKey("questions", KindDetail).With("id", "q2")))
	assert.False(t, detail.Matches(NewKey("topics", "")))
	assert.False(t, list.Matches(NewKey("questions", KindDetail)))
	assert.True(t, list.Matches(NewKey("questions", KindList)))
}
