package agent

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/fingreat/backend"
	apperrors "github.com/jrsteele09/fingreat/internal/errors"
	"github.com/rs/zerolog/log"
)

// Type selects which backend agent answers.
type Type string

const (
	Stock      Type = "stock"
	Financial  Type = "financial"
	Background Type = "background"
	Trading    Type = "trading"
	Master     Type = "master"
)

var knownTypes = map[Type]bool{Stock: true, Financial: true, Background: true, Trading: true, Master: true}

// ParseType maps a request value to a Type. Empty means Master.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return Master, nil
	}
	if !knownTypes[t] {
		return "", apperrors.Wrapf(apperrors.ErrInvalidRequest, "unknown agent %q", s)
	}
	return t, nil
}

type Chatter interface {
	Chat(ctx context.Context, req backend.ChatRequest) (backend.ChatReply, error)
}

// UserSource yields the signed-in user id, empty when signed out.
type UserSource interface {
	UserID() string
}

// CompanySource yields the selected company symbol, empty when none.
type CompanySource interface {
	Get() string
}

// Reply is the answer to one question.
type Reply struct {
	ConversationID string `json:"conversationId"`
	Agent          Type   `json:"agent"`
	Response       string `json:"response"`
}

type Service struct {
	chat      Chatter
	users     UserSource
	companies CompanySource
	repo      Repo
	pending   atomic.Int32
	now       func() time.Time

	// gate is read-held by every Ask; WhenIdle takes it exclusively.
	gate  sync.RWMutex
	mu    sync.Mutex
	convs map[string]*sync.Mutex
}

func NewService(chat Chatter, users UserSource, companies CompanySource, repo Repo) *Service {
	return &Service{
		chat:      chat,
		users:     users,
		companies: companies,
		repo:      repo,
		now:       time.Now,
		convs:     make(map[string]*sync.Mutex),
	}
}

// WhenIdle runs fn only if no question is in flight, and keeps new
// questions from starting until fn returns. It reports whether fn ran.
func (s *Service) WhenIdle(fn func()) bool {
	if !s.gate.TryLock() {
		return false
	}
	defer s.gate.Unlock()
	fn()
	return true
}

// lockConversation serializes the load, chat and save of one conversation.
func (s *Service) lockConversation(agent Type, userID, company string) func() {
	key := string(agent) + "|" + userID + "|" + company
	s.mu.Lock()
	l, ok := s.convs[key]
	if !ok {
		l = &sync.Mutex{}
		s.convs[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Processing is true while a question is waiting on the backend.
func (s *Service) Processing() bool {
	return s.pending.Load() > 0
}

func (s *Service) scope() (string, string, error) {
	userID := s.users.UserID()
	if userID == "" {
		return "", "", apperrors.ErrNotSignedIn
	}
	company := s.companies.Get()
	if company == "" {
		return "", "", apperrors.ErrNoCompany
	}
	return userID, company, nil
}

// Ask sends query to agent for the current user and company. The
// conversation only records the exchange once the backend has answered.
func (s *Service) Ask(ctx context.Context, agent Type, query string) (Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{}, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[Ask] empty query")
	}
	if agent == "" {
		agent = Master
	}

	s.gate.RLock()
	defer s.gate.RUnlock()

	userID, company, err := s.scope()
	if err != nil {
		return Reply{}, err
	}

	unlock := s.lockConversation(agent, userID, company)
	defer unlock()

	conv, err := s.repo.Get(agent, userID, company)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		conv = Conversation{
			ID:        uuid.NewString(),
			Agent:     agent,
			UserID:    userID,
			Company:   company,
			CreatedAt: s.now(),
		}
	} else if err != nil {
		return Reply{}, apperrors.Wrapf(err, "[Ask] load conversation")
	}

	history := make([]backend.ChatTurn, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		history = append(history, backend.ChatTurn{Role: m.Role, Content: m.Content})
	}

	s.pending.Add(1)
	defer s.pending.Add(-1)
	answer, err := s.chat.Chat(ctx, backend.ChatRequest{
		UserID:  userID,
		Company: company,
		Agent:   string(agent),
		Query:   query,
		History: history,
	})
	if err != nil {
		log.Err(err).Str("agent", string(agent)).Str("company", company).Msg("Agent chat failed")
		return Reply{}, apperrors.Wrapf(err, "[Ask] %s", agent)
	}

	now := s.now()
	conv.Messages = append(conv.Messages,
		Message{Role: RoleUser, Content: query, At: now},
		Message{Role: RoleAssistant, Content: answer.Response, At: now},
	)
	conv.UpdatedAt = now
	if err := s.repo.Upsert(conv); err != nil {
		return Reply{}, apperrors.Wrapf(err, "[Ask] save conversation")
	}

	return Reply{ConversationID: conv.ID, Agent: agent, Response: answer.Response}, nil
}

// History returns the conversation of agent for the current user and
// company; an unknown conversation is empty.
func (s *Service) History(agent Type) (Conversation, error) {
	if agent == "" {
		agent = Master
	}
	userID, company, err := s.scope()
	if err != nil {
		return Conversation{}, err
	}
	conv, err := s.repo.Get(agent, userID, company)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return Conversation{Agent: agent, UserID: userID, Company: company, Messages: []Message{}}, nil
	}
	return conv, err
}

// Clear forgets every conversation of userID; called on disconnect.
func (s *Service) Clear(userID string) error {
	if userID == "" {
		return nil
	}
	return s.repo.DeleteUser(userID)
}
