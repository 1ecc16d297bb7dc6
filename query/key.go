// Package query implements the client-side query cache: keyed entries with a
// staleness window, de-duplicated fetches, and prefix invalidation after
// mutations.
package query

import (
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/jmcleod/lectern/internal/util"
)

// Key kinds used by the content domains.
const (
	KindList       = "list"
	KindDetail     = "detail"
	KindWithCounts = "with-counts"
	KindAdminList  = "admin-list"
)

// Key identifies one cached query. Two keys with equal String() values
// address the same entry.
type Key struct {
	Domain string
	Kind   string
	Params map[string]string
}

// NewKey returns a key for domain and kind with no parameters.
func NewKey(domain, kind string) Key {
	return Key{Domain: domain, Kind: kind}
}

// With returns a copy of k with the named parameter set. An empty value
// removes the parameter.
func (k Key) With(name, value string) Key {
	params := maps.Clone(k.Params)
	if params == nil {
		params = make(map[string]string, 1)
	}
	if value = util.NormalizeParam(value); value == "" {
		delete(params, name)
	} else {
		params[name] = value
	}
	k.Params = params
	return k
}

// String renders the canonical form domain/kind?name=value&... with params
// sorted by name and empty values dropped.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Domain)
	if k.Kind != "" {
		b.WriteByte('/')
		b.WriteString(k.Kind)
	}
	sep := byte('?')
	for _, name := range slices.Sorted(maps.Keys(k.Params)) {
		v := util.NormalizeParam(k.Params[name])
		if v == "" {
			continue
		}
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	return b.String()
}

// Matches reports whether k falls under prefix p. An empty Domain or Kind
// in p acts as a wildcard, and every non-empty param of p must be present
// in k with the same value.
func (k Key) Matches(p Key) bool {
	if p.Domain != "" && p.Domain != k.Domain {
		return false
	}
	if p.Kind != "" && p.Kind != k.Kind {
		return false
	}
	for name, want := range p.Params {
		want = util.NormalizeParam(want)
		if want == "" {
			continue
		}
		if util.NormalizeParam(k.Params[name]) != want {
			return false
		}
	}
	return true
}
