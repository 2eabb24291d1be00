package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/sitechat/internal/ai"
	"github.com/suPer8Hu/sitechat/internal/auth"
	"github.com/suPer8Hu/sitechat/internal/logger"
	"github.com/suPer8Hu/sitechat/internal/settings"
)

type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (string, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type Service struct {
	repo      *Repo
	assembler *Assembler
	gateway   Completer
	settings  settings.Provider
	tokens    TokenVerifier
}

func NewService(repo *Repo, assembler *Assembler, gateway Completer, sp settings.Provider, tokens TokenVerifier) *Service {
	return &Service{
		repo:      repo,
		assembler: assembler,
		gateway:   gateway,
		settings:  sp,
		tokens:    tokens,
	}
}

// SendRequest is one inbound chat turn. SessionID is empty when the browser
// sent no session cookie.
type SendRequest struct {
	Token     string
	Message   string
	SessionID string
}

// SendMessage validates the turn, appends it to the session's transcript,
// asks the completion endpoint for a reply and persists both turns. The reply
// is only returned once it is stored.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (string, error) {
	// a client hanging up does not abort the turn; the gateway keeps its own bound
	ctx = context.WithoutCancel(ctx)

	// 1) validate
	claims, err := s.tokens.Verify(req.Token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	content := strings.TrimSpace(req.Message)
	if content == "" {
		return "", ErrEmptyMessage
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return "", ErrMissingSession
	}
	if claims.SessionID != sessionID {
		return "", fmt.Errorf("%w: token issued for another session", ErrInvalidToken)
	}
	accountID := claims.AccountID

	log := logger.Log.WithFields(logrus.Fields{"session_id": sessionID})

	// 2) load or init
	existing, err := s.repo.LoadBySession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	history := s.assembler.Restore(existing)

	// 3) append user turn
	history = s.assembler.AppendTurn(history, RoleUser, content)

	// 4) call the completion endpoint
	cur, err := s.settings.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("read settings: %w", err)
	}
	if cur.APIKey == "" {
		return "", ErrConfigMissing
	}

	reply, err := s.gateway.Complete(ctx, ai.CompletionRequest{
		Endpoint: cur.Endpoint,
		Model:    cur.Model,
		APIKey:   cur.APIKey,
		Messages: toProviderMessages(history),
	})
	if err != nil {
		if errors.Is(err, ai.ErrNoCompletion) {
			log.WithError(err).Error("completion endpoint returned no completion")
			return "", fmt.Errorf("%w: %w", ErrNoCompletion, err)
		}
		log.WithError(err).Error("completion endpoint unavailable")
		return "", fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	// 5) append assistant turn and persist
	history = s.assembler.AppendTurn(history, RoleAssistant, reply)

	if err := s.persist(ctx, existing == nil, sessionID, accountID, history, content, reply); err != nil {
		log.WithError(err).Error("failed to persist conversation")
		if errors.Is(err, ErrPersist) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrPersist, err)
	}

	// 6) respond
	return reply, nil
}

func (s *Service) persist(ctx context.Context, isNew bool, sessionID string, accountID uint64, history []Message, question, reply string) error {
	if !isNew {
		return s.repo.Update(ctx, sessionID, accountID, history)
	}
	_, err := s.repo.Create(ctx, sessionID, accountID, history)
	if !errors.Is(err, ErrDuplicateSession) {
		return err
	}

	// a concurrent first request created the row; append our turns to its transcript
	logger.Log.WithField("session_id", sessionID).Warn("conversation created concurrently, appending to it")
	winner, err := s.repo.LoadBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: reload after duplicate create: %v", ErrPersist, err)
	}
	if winner == nil {
		return fmt.Errorf("%w: conversation for session %s vanished after duplicate create", ErrPersist, sessionID)
	}
	merged := s.assembler.Restore(winner)
	merged = s.assembler.AppendTurn(merged, RoleUser, question)
	merged = s.assembler.AppendTurn(merged, RoleAssistant, reply)
	return s.repo.Update(ctx, sessionID, accountID, merged)
}

func toProviderMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
