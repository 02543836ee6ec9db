package agent_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/fingreat/agent"
	"github.com/jrsteele09/fingreat/backend"
	"github.com/jrsteele09/fingreat/backend/backendfake"
	"github.com/jrsteele09/fingreat/company"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/stretchr/testify/require"
)

type staticUser string

func (u staticUser) UserID() string { return string(u) }

// gatedChatter holds every Chat call until release is closed.
type gatedChatter struct {
	started chan backend.ChatRequest
	release chan struct{}
}

func newGatedChatter() *gatedChatter {
	return &gatedChatter{started: make(chan backend.ChatRequest, 4), release: make(chan struct{})}
}

func (g *gatedChatter) Chat(ctx context.Context, req backend.ChatRequest) (backend.ChatReply, error) {
	g.started <- req
	select {
	case <-g.release:
		return backend.ChatReply{Response: "answer to " + req.Query, Agent: req.Agent}, nil
	case <-ctx.Done():
		return backend.ChatReply{}, ctx.Err()
	}
}

func waitStarted(t *testing.T, g *gatedChatter) backend.ChatRequest {
	t.Helper()
	select {
	case req := <-g.started:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("chat did not start")
		return backend.ChatRequest{}
	}
}

func TestAskRequiresSessionAndCompany(t *testing.T) {
	fake := backendfake.NewFakeBackend()
	selection := company.NewSelection()

	svc := agent.NewService(fake, staticUser(""), selection, agent.NewInMemoryRepo())
	_, err := svc.Ask(context.Background(), agent.Master, "how is it doing?")
	require.ErrorIs(t, err, apperrors.ErrNotSignedIn)

	svc = agent.NewService(fake, staticUser("U123"), selection, agent.NewInMemoryRepo())
	_, err = svc.Ask(context.Background(), agent.Master, "how is it doing?")
	require.ErrorIs(t, err, apperrors.ErrNoCompany)
	require.Equal(t, "Please select a company from the sidebar before starting a conversation with the AI agent.", apperrors.UserMessage(err))

	_, err = svc.Ask(context.Background(), agent.Master, "   ")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	require.Empty(t, fake.Chats())
}

func TestAskKeepsHistoryPerCompany(t *testing.T) {
	fake := backendfake.NewFakeBackend()
	fake.ChatReply = "Looks bullish."
	selection := company.NewSelection()
	selection.Set("tcs")

	svc := agent.NewService(fake, staticUser("U123"), selection, agent.NewInMemoryRepo())

	first, err := svc.Ask(context.Background(), agent.Stock, "price trend?")
	require.NoError(t, err)
	require.Equal(t, "Looks bullish.", first.Response)
	require.Equal(t, agent.Stock, first.Agent)
	require.False(t, svc.Processing())

	second, err := svc.Ask(context.Background(), agent.Stock, "and volume?")
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)

	chats := fake.Chats()
	require.Len(t, chats, 2)
	require.Equal(t, backend.ChatRequest{UserID: "U123", Company: "TCS", Agent: "stock", Query: "price trend?", History: []backend.ChatTurn{}}, chats[0])
	require.Equal(t, []backend.ChatTurn{
		{Role: agent.RoleUser, Content: "price trend?"},
		{Role: agent.RoleAssistant, Content: "Looks bullish."},
	}, chats[1].History)

	selection.Set("infy")
	conv, err := svc.History(agent.Stock)
	require.NoError(t, err)
	require.Empty(t, conv.Messages)

	selection.Set("TCS")
	conv, err = svc.History(agent.Stock)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)

	require.NoError(t, svc.Clear("U123"))
	conv, err = svc.History(agent.Stock)
	require.NoError(t, err)
	require.Empty(t, conv.Messages)
}

func TestAskBackendFailureRecordsNothing(t *testing.T) {
	fake := backendfake.NewFakeBackend()
	fake.ChatErr = errors.New("agent offline")
	selection := company.NewSelection()
	selection.Set("TCS")

	svc := agent.NewService(fake, staticUser("U123"), selection, agent.NewInMemoryRepo())
	_, err := svc.Ask(context.Background(), agent.Master, "hello")
	require.Error(t, err)
	require.False(t, svc.Processing())

	conv, err := svc.History(agent.Master)
	require.NoError(t, err)
	require.Empty(t, conv.Messages)
}

func TestParseType(t *testing.T) {
	typ, err := agent.ParseType("")
	require.NoError(t, err)
	require.Equal(t, agent.Master, typ)

	typ, err = agent.ParseType(" Trading ")
	require.NoError(t, err)
	require.Equal(t, agent.Trading, typ)

	_, err = agent.ParseType("oracle")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestConcurrentAsksKeepEveryExchange(t *testing.T) {
	chat := newGatedChatter()
	selection := company.NewSelection()
	selection.Set("TCS")
	svc := agent.NewService(chat, staticUser("U123"), selection, agent.NewInMemoryRepo())

	var wg sync.WaitGroup
	ask := func(q string) {
		defer wg.Done()
		_, err := svc.Ask(context.Background(), agent.Stock, q)
		require.NoError(t, err)
	}

	wg.Add(1)
	go ask("first")
	require.Equal(t, "first", waitStarted(t, chat).Query)

	wg.Add(1)
	go ask("second")
	select {
	case req := <-chat.started:
		t.Fatalf("second question reached the backend early: %q", req.Query)
	case <-time.After(30 * time.Millisecond):
	}

	close(chat.release)
	second := waitStarted(t, chat)
	require.Equal(t, "second", second.Query)
	require.Len(t, second.History, 2)
	wg.Wait()

	conv, err := svc.History(agent.Stock)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
}

func TestWhenIdle(t *testing.T) {
	chat := newGatedChatter()
	selection := company.NewSelection()
	selection.Set("TCS")
	svc := agent.NewService(chat, staticUser("U123"), selection, agent.NewInMemoryRepo())

	require.True(t, svc.WhenIdle(func() { selection.Set("INFY") }))
	require.Equal(t, "INFY", selection.Get())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Ask(context.Background(), agent.Master, "hello")
		require.NoError(t, err)
	}()
	waitStarted(t, chat)
	require.True(t, svc.Processing())

	ran := false
	require.False(t, svc.WhenIdle(func() { ran = true }))
	require.False(t, ran)

	close(chat.release)
	<-done
	require.False(t, svc.Processing())
	require.True(t, svc.WhenIdle(func() { selection.Set("TCS") }))
}
