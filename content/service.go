// Package content serves topics, questions and answers through the query
// cache. Reads are cached with per-kind staleness; writes invalidate the
// reads they affect.
package content

import (
	"context"
	"time"

	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/query"
)

// API is the subset of client.Client the service calls.
type API interface {
	ListTopics(ctx context.Context, f client.TopicFilter) (*client.Page[client.Topic], error)
	TopicsWithCounts(ctx context.Context, f client.TopicFilter) (*client.Page[client.Topic], error)
	AdminListTopics(ctx context.Context, f client.TopicFilter) (*client.Page[client.Topic], error)
	GetTopic(ctx context.Context, id string) (*client.Topic, error)
	CreateTopic(ctx context.Context, in client.TopicInput) (*client.Topic, error)
	UpdateTopic(ctx context.Context, id string, in client.TopicInput) (*client.Topic, error)
	DeleteTopic(ctx context.Context, id string) error
	ToggleTopicStatus(ctx context.Context, id string) (*client.Topic, error)

	ListQuestions(ctx context.Context, f client.QuestionFilter) (*client.Page[client.Question], error)
	GetQuestion(ctx context.Context, id string) (*client.Question, error)
	CreateQuestion(ctx context.Context, in client.QuestionInput) (*client.Question, error)
	UpdateQuestion(ctx context.Context, id string, in client.QuestionInput) (*client.Question, error)
	DeleteQuestion(ctx context.Context, id string) error

	AddAnswer(ctx context.Context, questionID string, in client.AnswerInput) (*client.Answer, error)
	UpdateAnswer(ctx context.Context, questionID, answerID string, in client.AnswerInput) (*client.Answer, error)
	DeleteAnswer(ctx context.Context, questionID, answerID string) error
}

var _ API = (*client.Client)(nil)

// Staleness is how long each kind of read stays fresh.
type Staleness struct {
	TopicList      time.Duration `koanf:"topicList"`
	TopicDetail    time.Duration `koanf:"topicDetail"`
	TopicCounts    time.Duration `koanf:"topicCounts"`
	AdminTopics    time.Duration `koanf:"adminTopics"`
	QuestionList   time.Duration `koanf:"questionList"`
	QuestionDetail time.Duration `koanf:"questionDetail"`
}

// DefaultStaleness returns the stock staleness windows.
func DefaultStaleness() Staleness {
	return Staleness{
		TopicList:      5 * time.Minute,
		TopicDetail:    10 * time.Minute,
		TopicCounts:    2 * time.Minute,
		AdminTopics:    2 * time.Minute,
		QuestionList:   2 * time.Minute,
		QuestionDetail: 5 * time.Minute,
	}
}

// withDefaults fills zero windows from DefaultStaleness.
func (s Staleness) withDefaults() Staleness {
	d := DefaultStaleness()
	for _, p := range []struct{ v, def *time.Duration }{
		{&s.TopicList, &d.TopicList},
		{&s.TopicDetail, &d.TopicDetail},
		{&s.TopicCounts, &d.TopicCounts},
		{&s.AdminTopics, &d.AdminTopics},
		{&s.QuestionList, &d.QuestionList},
		{&s.QuestionDetail, &d.QuestionDetail},
	} {
		if *p.v <= 0 {
			*p.v = *p.def
		}
	}
	return s
}

// Service is the cached content facade.
type Service struct {
	api   API
	cache *query.Cache
	stale Staleness
}

// Option configures a Service.
type Option func(*Service)

// WithStaleness overrides the staleness windows. Zero fields keep their
// defaults.
func WithStaleness(s Staleness) Option {
	return func(svc *Service) { svc.stale = s.withDefaults() }
}

// NewService creates a Service over api, caching in cache.
func NewService(api API, cache *query.Cache, opts ...Option) *Service {
	s := &Service{api: api, cache: cache, stale: DefaultStaleness()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the underlying query cache.
func (s *Service) Cache() *query.Cache { return s.cache }

type topicPage = *client.Page[client.Topic]

type questionPage = *client.Page[client.Question]

// Topics lists topics.
func (s *Service) Topics(ctx context.Context, f client.TopicFilter) (topicPage, error) {
	return query.Read(ctx, s.cache, TopicListKey(query.KindList, f), s.stale.TopicList,
		func(ctx context.Context) (topicPage, error) { return s.api.ListTopics(ctx, f) })
}

// TopicsWithCounts lists topics with their question counts.
func (s *Service) TopicsWithCounts(ctx context.Context, f client.TopicFilter) (topicPage, error) {
	return query.Read(ctx, s.cache, TopicListKey(query.KindWithCounts, f), s.stale.TopicCounts,
		func(ctx context.Context) (topicPage, error) { return s.api.TopicsWithCounts(ctx, f) })
}

// AdminTopics lists topics of every status. Admin only.
func (s *Service) AdminTopics(ctx context.Context, f client.TopicFilter) (topicPage, error) {
	return query.Read(ctx, s.cache, TopicListKey(query.KindAdminList, f), s.stale.AdminTopics,
		func(ctx context.Context) (topicPage, error) { return s.api.AdminListTopics(ctx, f) })
}

// Topic reads one topic.
func (s *Service) Topic(ctx context.Context, id string) (*client.Topic, error) {
	return query.Read(ctx, s.cache, TopicKey(id), s.stale.TopicDetail,
		func(ctx context.Context) (*client.Topic, error) { return s.api.GetTopic(ctx, id) })
}

// Questions lists questions.
func (s *Service) Questions(ctx context.Context, f client.QuestionFilter) (questionPage, error) {
	return query.Read(ctx, s.cache, QuestionListKey(f), s.stale.QuestionList,
		func(ctx context.Context) (questionPage, error) { return s.api.ListQuestions(ctx, f) })
}

// Question reads one question with its answers.
func (s *Service) Question(ctx context.Context, id string) (*client.Question, error) {
	return query.Read(ctx, s.cache, QuestionKey(id), s.stale.QuestionDetail,
		func(ctx context.Context) (*client.Question, error) { return s.api.GetQuestion(ctx, id) })
}

func (s *Service) CreateTopic(ctx context.Context, in client.TopicInput) (*client.Topic, error) {
	return query.Mutate(ctx, s.cache, func(ctx context.Context) (*client.Topic, error) {
		return s.api.CreateTopic(ctx, in)
	}, InvalidationKeys(CreateTopic, Target{})...)
}

func (s *Service) UpdateTopic(ctx context.Context, id string, in client.TopicInput) (*client.Topic, error) {
	return query.Mutate(ctx, s.cache, func(ctx context.Context) (*client.Topic, error) {
		return s.api.UpdateTopic(ctx, id, in)
	}, InvalidationKeys(UpdateTopic, Target{TopicID: id})...)
}

func (s *Service) DeleteTopic(ctx context.Context, id string) error {
	return s.mutateNoResult(ctx, func(ctx context.Context) error {
		return s.api.DeleteTopic(ctx, id)
	}, DeleteTopic, Target{TopicID: id})
}

func (s *Service) ToggleTopicStatus(ctx context.Context, id string) (*client.Topic, error) {
	return query.Mutate(ctx, s.cache, func(ctx context.Context) (*client.Topic, error) {
		return s.api.ToggleTopicStatus(ctx, id)
	}, InvalidationKeys(ToggleTopicStatus, Target{TopicID: id})...)
}

func (s *Service) CreateQuestion(ctx context.Context, in client.QuestionInput) (*client.Question, error) {
	return query.Mutate(ctx, s.cache, func(ctx context.Context) (*client.Question, error) {
		return s.api.CreateQuestion(ctx, in)
	}, InvalidationKeys(CreateQuestion, Target{TopicID: in.TopicID})...)
}

func (s *Service) UpdateQuestion(ctx context.Context, id string, in client.QuestionInput) (*client.Question, error) {
	return query.Mutate(ctx, s.cache, func(ctx context.Context) (*client.Question, error) {
		return s.api.UpdateQuestion(ctx, id, in)
	}, InvalidationKeys(UpdateQuestion, Target{QuestionID: id, TopicID: in.TopicID})...)
}

func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	return s.mutateNoResult(ctx, func(ctx context.Context) error {
		return s.api.DeleteQuestion(ctx, id)
	}, DeleteQuestion, Target{QuestionID: id})
}

func (s *Service) AddAnswer(ctx context.Context, questionID string, in client.AnswerInput) (*client.Answer, error) {
	return query.Mutate(ctx, s.cache, func(ctx context.Context) (*client.Answer, error) {
		return s.api.AddAnswer(ctx, questionID, in)
	}, InvalidationKeys(AddAnswer, Target{QuestionID: questionID})...)
}

func (s *Service) UpdateAnswer(ctx context.Context, questionID, answerID string, in client.AnswerInput) (*client.Answer, error) {
	return query.Mutate(ctx, s.cache, func(ctx context.Context) (*client.Answer, error) {
		return s.api.UpdateAnswer(ctx, questionID, answerID, in)
	}, InvalidationKeys(UpdateAnswer, Target{QuestionID: questionID})...)
}

func (s *Service) DeleteAnswer(ctx context.Context, questionID, answerID string) error {
	return s.mutateNoResult(ctx, func(ctx context.Context) error {
		return s.api.DeleteAnswer(ctx, questionID, answerID)
	}, DeleteAnswer, Target{QuestionID: questionID})
}

func (s *Service) mutateNoResult(ctx context.Context, fn func(context.Context) error, m Mutation, target Target) error {
	_, err := s.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	}, InvalidationKeys(m, target)...)
	return err
}
