package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmcleod/lectern/client"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 0, 0},
		{"page=2&limit=10", 2, 10},
		{"page=-1&limit=0", 0, 0},
		{"page=abc&limit=xyz", 0, 0},
		{"limit=5000", 0, maxPageLimit},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/topics?"+tt.query, nil)
			page, limit := parsePage(r)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestParseFilters(t *testing.T) {
	r := httptest.NewRequest("GET", "/topics?search=go&status=active&page=3", nil)
	assert.Equal(t, client.TopicFilter{Page: 3, Search: "go", Status: "active"}, parseTopicFilter(r))

	r = httptest.NewRequest("GET", "/questions?topicId=t1&limit=20", nil)
	assert.Equal(t, client.QuestionFilter{TopicID: "t1", Limit: 20}, parseQuestionFilter(r))
}
