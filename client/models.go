package client

import "time"

// User is the identity attached to a session.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}

// Topic is a content topic as returned by the remote API.
type Topic struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug,omitempty"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status,omitempty"`
	QuestionCount int       `json:"questionCount,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

// Question belongs to a topic and carries its answers on detail reads.
type Question struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topicId"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author,omitempty"`
	AnswerCount int       `json:"answerCount,omitempty"`
	Answers     []Answer  `json:"answers,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Answer is a reply to a question.
type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	Body       string    `json:"body"`
	Author     string    `json:"author,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	UpdatedAt  time.Time `json:"updatedAt,omitzero"`
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items      []T         `json:"items"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// TopicFilter narrows topic list reads. Zero values are omitted from the request.
type TopicFilter struct {
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Search string `json:"search,omitempty"`
	Status string `json:"status,omitempty"`
}

// QuestionFilter narrows question list reads.
type QuestionFilter struct {
	TopicID string `json:"topicId,omitempty"`
	Page    int    `json:"page,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Search  string `json:"search,omitempty"`
}

// TopicInput is the body for topic create and update.
type TopicInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Slug        string `json:"slug,omitempty" validate:"omitempty,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// QuestionInput is the body for question create and update.
type QuestionInput struct {
	TopicID string `json:"topicId" validate:"required"`
	Title   string `json:"title" validate:"required,max=300"`
	Body    string `json:"body,omitempty" validate:"max=20000"`
}

// AnswerInput is the body for answer add and update.
type AnswerInput struct {
	Body string `json:"body" validate:"required,max=20000"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the tokens and identity issued on login.
type LoginResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// RefreshResult carries the token pair issued by POST /auth/refresh.
type RefreshResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
