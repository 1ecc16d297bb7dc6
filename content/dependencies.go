package content

import "github.com/jmcleod/lectern/query"

// Mutation names a write operation against the remote API.
type Mutation string

const (
	CreateTopic       Mutation = "create-topic"
	UpdateTopic       Mutation = "update-topic"
	DeleteTopic       Mutation = "delete-topic"
	ToggleTopicStatus Mutation = "toggle-topic-status"
	CreateQuestion    Mutation = "create-question"
	UpdateQuestion    Mutation = "update-question"
	DeleteQuestion    Mutation = "delete-question"
	AddAnswer         Mutation = "add-answer"
	UpdateAnswer      Mutation = "update-answer"
	DeleteAnswer      Mutation = "delete-answer"
)

// Target carries the ids a mutation acted on.
type Target struct {
	TopicID    string
	QuestionID string
}

type bind int

const (
	bindNone bind = iota
	bindTopic
	bindQuestion
)

type dependency struct {
	prefix query.Key
	bind   bind
}

var (
	allTopics       = dependency{prefix: query.NewKey(DomainTopics, "")}
	topicLists      = dependency{prefix: query.NewKey(DomainTopics, query.KindList)}
	topicCounts     = dependency{prefix: query.NewKey(DomainTopics, query.KindWithCounts)}
	adminTopics     = dependency{prefix: query.NewKey(DomainTopics, query.KindAdminList)}
	topicDetail     = dependency{prefix: query.NewKey(DomainTopics, query.KindDetail), bind: bindTopic}
	questionLists   = dependency{prefix: query.NewKey(DomainQuestions, query.KindList)}
	questionDetail  = dependency{prefix: query.NewKey(DomainQuestions, query.KindDetail), bind: bindQuestion}
	answerDependent = []dependency{questionDetail, questionLists}
)

// dependencies lists, for every mutation, the cached queries whose data it
// can change.
var dependencies = map[Mutation][]dependency{
	CreateTopic:       {topicLists, topicCounts, adminTopics},
	UpdateTopic:       {topicDetail, topicLists, topicCounts, adminTopics},
	DeleteTopic:       {allTopics, questionLists},
	ToggleTopicStatus: {allTopics},
	CreateQuestion:    {questionLists, topicCounts},
	UpdateQuestion:    {questionDetail, questionLists},
	DeleteQuestion:    {questionDetail, questionLists, topicCounts},
	AddAnswer:         answerDependent,
	UpdateAnswer:      answerDependent,
	DeleteAnswer:      answerDependent,
}

// InvalidationKeys returns the de-duplicated prefixes m invalidates, with
// ids bound from target. An unbound id widens the prefix to every entry of
// that kind.
func InvalidationKeys(m Mutation, target Target) []query.Key {
	deps := dependencies[m]
	keys := make([]query.Key, 0, len(deps))
	seen := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		k := d.prefix
		switch d.bind {
		case bindTopic:
			k = k.With("id", target.TopicID)
		case bindQuestion:
			k = k.With("id", target.QuestionID)
		}
		if _, dup := seen[k.String()]; dup {
			continue
		}
		seen[k.String()] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
