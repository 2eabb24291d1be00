package chat

import "errors"

var (
	ErrInvalidToken       = errors.New("invalid request token")
	ErrEmptyMessage       = errors.New("empty message")
	ErrMissingSession     = errors.New("missing session")
	ErrConfigMissing      = errors.New("api key not configured")
	ErrGatewayUnavailable = errors.New("completion gateway unavailable")
	ErrNoCompletion       = errors.New("no completion returned")
	ErrDuplicateSession   = errors.New("conversation already exists for session")
	ErrPersist            = errors.New("failed to persist conversation")
	ErrCorruptTranscript  = errors.New("corrupt transcript")
)
