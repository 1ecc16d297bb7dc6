package api

import (
	"net/http"
	"strconv"

	"github.com/jmcleod/lectern/client"
)

const maxPageLimit = 100

// parsePage reads "page" and "limit" query parameters. Missing, invalid or
// negative values become 0, which leaves the remote default in place; limit
// is capped at maxPageLimit.
func parsePage(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func parseTopicFilter(r *http.Request) client.TopicFilter {
	page, limit := parsePage(r)
	return client.TopicFilter{
		Page:   page,
		Limit:  limit,
		Search: r.URL.Query().Get("search"),
		Status: r.URL.Query().Get("status"),
	}
}

func parseQuestionFilter(r *http.Request) client.QuestionFilter {
	page, limit := parsePage(r)
	return client.QuestionFilter{
		TopicID: r.URL.Query().Get("topicId"),
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
	}
}
