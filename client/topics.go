package client

import (
	"context"
	"net/http"
	"net/url"
)

func (f TopicFilter) values() url.Values {
	q := pageQuery(f.Page, f.Limit)
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	return q
}

func (c *Client) listTopics(ctx context.Context, path string, f TopicFilter) (*Page[Topic], error) {
	var env Envelope[[]Topic]
	if err := c.do(ctx, request{method: http.MethodGet, path: path, query: f.values()}, &env); err != nil {
		return nil, err
	}
	return &Page[Topic]{Items: env.Data, Pagination: env.Pagination}, nil
}

// ListTopics handles GET /topics.
func (c *Client) ListTopics(ctx context.Context, f TopicFilter) (*Page[Topic], error) {
	return c.listTopics(ctx, "/topics", f)
}

// TopicsWithCounts handles GET /topics/with-counts. Each topic carries its
// derived question count.
func (c *Client) TopicsWithCounts(ctx context.Context, f TopicFilter) (*Page[Topic], error) {
	return c.listTopics(ctx, "/topics/with-counts", f)
}

// AdminListTopics handles GET /admin/topics, which includes inactive topics.
func (c *Client) AdminListTopics(ctx context.Context, f TopicFilter) (*Page[Topic], error) {
	return c.listTopics(ctx, "/admin/topics", f)
}

// GetTopic handles GET /topics/{id}.
func (c *Client) GetTopic(ctx context.Context, id string) (*Topic, error) {
	if err := requireID("topic", id); err != nil {
		return nil, err
	}
	var env Envelope[*Topic]
	if err := c.do(ctx, request{method: http.MethodGet, path: "/topics/" + url.PathEscape(id)}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateTopic handles POST /topics.
func (c *Client) CreateTopic(ctx context.Context, in TopicInput) (*Topic, error) {
	if err := c.check(in); err != nil {
		return nil, err
	}
	var env Envelope[*Topic]
	if err := c.do(ctx, request{method: http.MethodPost, path: "/topics", body: in}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// UpdateTopic handles PUT /topics/{id}.
func (c *Client) UpdateTopic(ctx context.Context, id string, in TopicInput) (*Topic, error) {
	if err := requireID("topic", id); err != nil {
		return nil, err
	}
	if err := c.check(in); err != nil {
		return nil, err
	}
	var env Envelope[*Topic]
	if err := c.do(ctx, request{method: http.MethodPut, path: "/topics/" + url.PathEscape(id), body: in}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// DeleteTopic handles DELETE /topics/{id}.
func (c *Client) DeleteTopic(ctx context.Context, id string) error {
	if err := requireID("topic", id); err != nil {
		return err
	}
	var env Envelope[struct{}]
	return c.do(ctx, request{method: http.MethodDelete, path: "/topics/" + url.PathEscape(id)}, &env)
}

// ToggleTopicStatus handles PATCH /admin/topics/{id}/toggle-status and
// returns the topic with its new status.
func (c *Client) ToggleTopicStatus(ctx context.Context, id string) (*Topic, error) {
	if err := requireID("topic", id); err != nil {
		return nil, err
	}
	var env Envelope[*Topic]
	path := "/admin/topics/" + url.PathEscape(id) + "/toggle-status"
	if err := c.do(ctx, request{method: http.MethodPatch, path: path}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}
