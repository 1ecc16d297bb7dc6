package client

import (
	"context"
	"net/http"
	"net/url"
)

func answersPath(questionID string) string {
	return "/questions/" + url.PathEscape(questionID) + "/answers"
}

// AddAnswer handles POST /questions/{id}/answers.
func (c *Client) AddAnswer(ctx context.Context, questionID string, in AnswerInput) (*Answer, error) {
	if err := requireID("question", questionID); err != nil {
		return nil, err
	}
	if err := c.check(in); err != nil {
		return nil, err
	}
	var env Envelope[*Answer]
	if err := c.do(ctx, request{method: http.MethodPost, path: answersPath(questionID), body: in}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// UpdateAnswer handles PUT /questions/{id}/answers/{answerId}.
func (c *Client) UpdateAnswer(ctx context.Context, questionID, answerID string, in AnswerInput) (*Answer, error) {
	if err := requireID("question", questionID); err != nil {
		return nil, err
	}
	if err := requireID("answer", answerID); err != nil {
		return nil, err
	}
	if err := c.check(in); err != nil {
		return nil, err
	}
	var env Envelope[*Answer]
	path := answersPath(questionID) + "/" + url.PathEscape(answerID)
	if err := c.do(ctx, request{method: http.MethodPut, path: path, body: in}, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// DeleteAnswer handles DELETE /questions/{id}/answers/{answerId}.
func (c *Client) DeleteAnswer(ctx context.Context, questionID, answerID string) error {
	if err := requireID("question", questionID); err != nil {
		return err
	}
	if err := requireID("answer", answerID); err != nil {
		return err
	}
	var env Envelope[struct{}]
	path := answersPath(questionID) + "/" + url.PathEscape(answerID)
	return c.do(ctx, request{method: http.MethodDelete, path: path}, &env)
}
