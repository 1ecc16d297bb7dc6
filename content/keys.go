package content

import (
	"strconv"

	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/query"
)

// Cache domains.
const (
	DomainTopics    = "topics"
	DomainQuestions = "questions"
)

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// TopicListKey addresses one topic list read of the given kind.
func TopicListKey(kind string, f client.TopicFilter) query.Key {
	return query.NewKey(DomainTopics, kind).
		With("page", itoa(f.Page)).
		With("limit", itoa(f.Limit)).
		With("search", f.Search).
		With("status", f.Status)
}

// TopicKey addresses a single topic.
func TopicKey(id string) query.Key {
	return query.NewKey(DomainTopics, query.KindDetail).With("id", id)
}

// QuestionListKey addresses one question list read.
func QuestionListKey(f client.QuestionFilter) query.Key {
	return query.NewKey(DomainQuestions, query.KindList).
		With("topicId", f.TopicID).
		With("page", itoa(f.Page)).
		With("limit", itoa(f.Limit)).
		With("search", f.Search)
}

// QuestionKey addresses a single question with its answers.
func QuestionKey(id string) query.Key {
	return query.NewKey(DomainQuestions, query.KindDetail).With("id", id)
}
