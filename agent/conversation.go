package agent

import (
	"sync"
	"time"

	apperrors "github.com/jrsteele09/fingreat/internal/errors"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation holds the history of one agent with one user about one
// company.
type Conversation struct {
	ID        string    `json:"id"`
	Agent     Type      `json:"agent"`
	UserID    string    `json:"userId"`
	Company   string    `json:"company"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Repo interface {
	Upsert(conv Conversation) error
	Get(agent Type, userID, company string) (Conversation, error)
	DeleteUser(userID string) error
}

type conversationKey struct {
	agent   Type
	company string
}

// InMemoryRepo keeps conversations per user, then per (agent, company).
type InMemoryRepo struct {
	mu    sync.RWMutex
	convs map[string]map[conversationKey]Conversation
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{convs: make(map[string]map[conversationKey]Conversation)}
}

func (r *InMemoryRepo) Upsert(conv Conversation) error {
	if conv.UserID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "userID is required")
	}
	if conv.Company == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "company is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.convs[conv.UserID]; !ok {
		r.convs[conv.UserID] = make(map[conversationKey]Conversation)
	}
	conv.Messages = append([]Message(nil), conv.Messages...)
	r.convs[conv.UserID][conversationKey{agent: conv.Agent, company: conv.Company}] = conv
	return nil
}

func (r *InMemoryRepo) Get(agent Type, userID, company string) (Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConvs, ok := r.convs[userID]
	if !ok {
		return Conversation{}, apperrors.ErrNotFound
	}
	conv, ok := userConvs[conversationKey{agent: agent, company: company}]
	if !ok {
		return Conversation{}, apperrors.ErrNotFound
	}
	conv.Messages = append([]Message(nil), conv.Messages...)
	return conv, nil
}

// DeleteUser drops every conversation of userID.
func (r *InMemoryRepo) DeleteUser(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, userID)
	return nil
}
