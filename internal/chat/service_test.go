package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/suPer8Hu/sitechat/internal/ai"
	"github.com/suPer8Hu/sitechat/internal/auth"
	"github.com/suPer8Hu/sitechat/internal/settings"
	"gorm.io/gorm"
)

type recordingGateway struct {
	reply string
	err   error
	calls int
	last  ai.CompletionRequest
}

func (g *recordingGateway) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	_ = ctx
	g.calls++
	// copy to avoid mutations
	req.Messages = append([]ai.Message(nil), req.Messages...)
	g.last = req
	return g.reply, g.err
}

type fixture struct {
	db      *gorm.DB
	repo    *Repo
	svc     *Service
	gw      *recordingGateway
	tokens  *auth.TokenSigner
	cfg     *settings.MemoryStore
	session string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)

	asm := NewAssembler("Third Wave BBQ", time.UTC)
	gw := &recordingGateway{reply: "We're open 11am-9pm daily."}
	tokens := auth.NewTokenSigner("test-secret", time.Hour)
	cfg := settings.NewMemoryStore(settings.Settings{APIKey: "sk-test", Model: "gpt-test", Endpoint: "http://llm.invalid/v1/chat/completions"})

	return &fixture{
		db:      db,
		repo:    repo,
		svc:     NewService(repo, asm, gw, cfg, tokens),
		gw:      gw,
		tokens:  tokens,
		cfg:     cfg,
		session: "S1",
	}
}

func (f *fixture) request(t *testing.T, msg string) SendRequest {
	t.Helper()
	tok, err := f.tokens.Issue(f.session, 0)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return SendRequest{Token: tok, Message: msg, SessionID: f.session}
}

func (f *fixture) stored(t *testing.T) []Message {
	t.Helper()
	conv, err := f.repo.LoadBySession(context.Background(), f.session)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conv == nil {
		return nil
	}
	msgs, err := conv.Messages()
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	return msgs
}

func TestSendMessage_NewSession(t *testing.T) {
	f := newFixture(t)

	reply, err := f.svc.SendMessage(context.Background(), f.request(t, "What are your hours?"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply != "We're open 11am-9pm daily." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	if len(f.gw.last.Messages) != 2 {
		t.Fatalf("expected system+user sent to gateway, got %d", len(f.gw.last.Messages))
	}
	if f.gw.last.Messages[0].Role != "system" || f.gw.last.Messages[1].Content != "What are your hours?" {
		t.Fatalf("unexpected gateway input: %+v", f.gw.last.Messages)
	}
	if f.gw.last.APIKey != "sk-test" || f.gw.last.Model != "gpt-test" || f.gw.last.Endpoint != "http://llm.invalid/v1/chat/completions" {
		t.Fatalf("settings not passed through: %+v", f.gw.last)
	}

	msgs := f.stored(t)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 stored messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[1].Role != RoleUser || msgs[2].Role != RoleAssistant {
		t.Fatalf("unexpected roles: %+v", msgs)
	}
	if msgs[2].Content != reply {
		t.Fatalf("stored reply mismatch: %q", msgs[2].Content)
	}
}

func TestSendMessage_AppendsTwoTurnsPerRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, f.request(t, "first")); err != nil {
		t.Fatalf("send 1: %v", err)
	}
	before := f.stored(t)

	f.gw.reply = "second answer"
	if _, err := f.svc.SendMessage(ctx, f.request(t, "second")); err != nil {
		t.Fatalf("send 2: %v", err)
	}
	after := f.stored(t)

	if len(after) != len(before)+2 {
		t.Fatalf("expected %d messages, got %d", len(before)+2, len(after))
	}
	if after[0].Content != before[0].Content {
		t.Fatalf("system message must be kept from the first turn")
	}
	if after[3].Role != RoleUser || after[3].Content != "second" || after[4].Role != RoleAssistant || after[4].Content != "second answer" {
		t.Fatalf("unexpected tail: %+v", after[3:])
	}
	if len(f.gw.last.Messages) != 4 {
		t.Fatalf("expected full history resent, got %d", len(f.gw.last.Messages))
	}

	var n int64
	f.db.Model(&Conversation{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one conversation row, got %d", n)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherTok, _ := f.tokens.Issue("someone-else", 0)
	validTok, _ := f.tokens.Issue(f.session, 0)

	cases := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"bad token", SendRequest{Token: "junk", Message: "hi", SessionID: f.session}, ErrInvalidToken},
		{"empty message", SendRequest{Token: validTok, Message: "   ", SessionID: f.session}, ErrEmptyMessage},
		{"missing session", SendRequest{Token: validTok, Message: "hi"}, ErrMissingSession},
		{"token for other session", SendRequest{Token: otherTok, Message: "hi", SessionID: f.session}, ErrInvalidToken},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if f.gw.calls != 0 {
		t.Fatalf("validation failures must not reach the gateway")
	}
}

func TestSendMessage_ConfigMissingShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.cfg.Save(ctx, settings.Settings{APIKey: ""}); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	_, err := f.svc.SendMessage(ctx, f.request(t, "hi"))
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
	if f.gw.calls != 0 {
		t.Fatalf("gateway must not be called without an api key")
	}
	if f.stored(t) != nil {
		t.Fatalf("no conversation should be stored")
	}
}

func TestSendMessage_GatewayFailuresPersistNothing(t *testing.T) {
	cases := []struct {
		name    string
		gwErr   error
		want    error
		notWant error
	}{
		{"unavailable", ai.ErrUnavailable, ErrGatewayUnavailable, ErrNoCompletion},
		{"timeout", context.DeadlineExceeded, ErrGatewayUnavailable, ErrNoCompletion},
		{"no completion", ai.ErrNoCompletion, ErrNoCompletion, ErrGatewayUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.gw.err = tc.gwErr

			reply, err := f.svc.SendMessage(context.Background(), f.request(t, "hi"))
			if !errors.Is(err, tc.want) || errors.Is(err, tc.notWant) {
				t.Fatalf("expected %v only, got %v", tc.want, err)
			}
			if reply != "" {
				t.Fatalf("no reply expected, got %q", reply)
			}
			if f.stored(t) != nil {
				t.Fatalf("no row may be created when the gateway fails")
			}
		})
	}
}

func TestSendMessage_GatewayFailureLeavesExistingRowUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, f.request(t, "first")); err != nil {
		t.Fatalf("send: %v", err)
	}
	before := f.stored(t)

	f.gw.err = ai.ErrUnavailable
	if _, err := f.svc.SendMessage(ctx, f.request(t, "second")); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if after := f.stored(t); len(after) != len(before) {
		t.Fatalf("row must not be updated: before=%d after=%d", len(before), len(after))
	}
}

func TestSendMessage_CorruptHistoryIsReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.db.Create(&Conversation{SessionID: f.session, Transcript: "garbage{"}).Error; err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	if _, err := f.svc.SendMessage(ctx, f.request(t, "hi")); err != nil {
		t.Fatalf("corrupt history must not fail the request: %v", err)
	}
	if len(f.gw.last.Messages) != 2 {
		t.Fatalf("expected fresh system+user, got %d messages", len(f.gw.last.Messages))
	}
	msgs := f.stored(t)
	if len(msgs) != 3 || msgs[0].Role != RoleSystem {
		t.Fatalf("expected fresh transcript stored, got %+v", msgs)
	}
}

func TestSendMessage_DuplicateCreateAppendsToConcurrentTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// another request creates the row between our load and our create
	f.gw.err = nil
	racer := &racingGateway{inner: f.gw, repo: f.repo, session: f.session}
	f.svc.gateway = racer

	reply, err := f.svc.SendMessage(ctx, f.request(t, "hi"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply == "" {
		t.Fatalf("expected reply")
	}

	var n int64
	f.db.Model(&Conversation{}).Where("session_id = ?", f.session).Count(&n)
	if n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
	msgs := f.stored(t)
	if len(msgs) != 5 {
		t.Fatalf("expected the concurrent turn plus ours, got %+v", msgs)
	}
	if msgs[1].Content != "winner question" || msgs[2].Content != "winner answer" {
		t.Fatalf("concurrent turn was lost: %+v", msgs)
	}
	if msgs[3].Role != RoleUser || msgs[3].Content != "hi" || msgs[4].Role != RoleAssistant || msgs[4].Content != reply {
		t.Fatalf("our turn was not appended: %+v", msgs)
	}
}

// racingGateway stores a complete first turn for the session before replying,
// as a concurrent first request would.
type racingGateway struct {
	inner   *recordingGateway
	repo    *Repo
	session string
}

func (g *racingGateway) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	winner := []Message{
		{Role: RoleSystem, Content: req.Messages[0].Content},
		{Role: RoleUser, Content: "winner question"},
		{Role: RoleAssistant, Content: "winner answer"},
	}
	if _, err := g.repo.Create(ctx, g.session, 0, winner); err != nil {
		return "", err
	}
	return g.inner.Complete(ctx, req)
}

type cancellingGateway struct {
	inner  *recordingGateway
	cancel context.CancelFunc
}

func (g *cancellingGateway) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	g.cancel()
	return g.inner.Complete(ctx, req)
}

func TestSendMessage_ClientCancelStillPersists(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.gateway = &cancellingGateway{inner: f.gw, cancel: cancel}

	reply, err := f.svc.SendMessage(ctx, f.request(t, "hi"))
	if err != nil {
		t.Fatalf("send after client cancel: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("expected caller context to be cancelled")
	}
	msgs := f.stored(t)
	if len(msgs) != 3 || msgs[2].Content != reply {
		t.Fatalf("expected the turn to be stored, got %+v", msgs)
	}
}

func TestSendMessage_PersistFailureHidesReply(t *testing.T) {
	f := newFixture(t)

	if err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_create", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	reply, err := f.svc.SendMessage(context.Background(), f.request(t, "hi"))
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if reply != "" {
		t.Fatalf("reply must not be returned when persisting fails, got %q", reply)
	}
	if f.gw.calls != 1 {
		t.Fatalf("expected gateway to be called once, got %d", f.gw.calls)
	}
}
