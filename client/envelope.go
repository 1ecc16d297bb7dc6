package client

// Pagination is attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages,omitempty"`
}

// Envelope is the uniform body returned by every endpoint.
type Envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// result is implemented by every decoded body so the transport can tell
// envelope failures apart without knowing the payload type.
type result interface {
	ok() bool
	message() string
	reset()
}

func (e *Envelope[T]) ok() bool        { return e.Success }
func (e *Envelope[T]) message() string { return e.Error }
func (e *Envelope[T]) reset()          { *e = Envelope[T]{} }

// authEnvelope accepts token payloads either at the top level of the body or
// nested under data; backends differ on which they send.
type authEnvelope struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
	Data         *struct {
		Token        string `json:"token,omitempty"`
		RefreshToken string `json:"refreshToken,omitempty"`
		User         *User  `json:"user,omitempty"`
	} `json:"data,omitempty"`
}

func (e *authEnvelope) ok() bool        { return e.Success }
func (e *authEnvelope) message() string { return e.Error }
func (e *authEnvelope) reset()          { *e = authEnvelope{} }

func (e *authEnvelope) token() string {
	if e.Token == "" && e.Data != nil {
		return e.Data.Token
	}
	return e.Token
}

func (e *authEnvelope) refreshToken() string {
	if e.RefreshToken == "" && e.Data != nil {
		return e.Data.RefreshToken
	}
	return e.RefreshToken
}

func (e *authEnvelope) user() *User {
	if e.User == nil && e.Data != nil {
		return e.Data.User
	}
	return e.User
}
