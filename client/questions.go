package client

import (
	"context"
	"net/http"
	"net/url"
)

func (f QuestionFilter) values() url.Values {
	q := pageQuery(f.Page, f.Limit)
	if f.TopicID != "" {
		q.Set("topicId", f.TopicID)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

// ListQuestions handles GET /questions.
func (c *Client) ListQuestions(ctx context.Context, f QuestionFilter) (*Page[Question], error) {
	var env Envelope[[]Question]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/questions", query: f.values()}, &env); err != nil {
		return nil, err
	}
	return &Page[Question]{Items: env.Data, Pagination: env.Pagination}, nil
}

// GetQuestion handles GET /questions/{id}.
func (c *Client) GetQuestion(ctx context.Context, id string) (*Question, error) {
	if err := requireID("question", id); err != nil {
		return nil, err
	}
	var env Envelope[*Question]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/questions/" + url.PathEscape(id)}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateQuestion handles POST /questions.
func (c *Client) CreateQuestion(ctx context.Context, in QuestionInput) (*Question, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var env Envelope[*Question]
	if err := c.do(ctx, request{method: http.MethodPost, path: "/questions", body: in}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// UpdateQuestion handles PUT /questions/{id}.
func (c *Client) UpdateQuestion(ctx context.Context, id string, in QuestionInput) (*Question, error) {
	if err := requireID("question", id); err != nil {
		return nil, err
	}
	if err := c.check(in); err != nil {
		return nil, err
	}
	var env Envelope[*Question]
	if err := c.do(ctx, request{method: http.MethodPut, path: "/questions/" + url.PathEscape(id), body: in}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// DeleteQuestion handles DELETE /questions/{id}.
func (c *Client) DeleteQuestion(ctx context.Context, id string) error {
	if err := requireID("question", id); err != nil {
		return err
	}
	var env Envelope[struct{}]
	return c.do(ctx, request{method: http.MethodDelete, path: "/questions/" + url.PathEscape(id)}, &env)
}
