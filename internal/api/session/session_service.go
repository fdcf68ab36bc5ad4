package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wanderhk/tourism-ai/internal/types"
)

// Config bounds per-session state.
type Config struct {
	TTL           time.Duration
	MaxMessages   int
	PreserveTurns int
	ContextBudget int // characters of assembled history
	JanitorPeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		TTL:           24 * time.Hour,
		MaxMessages:   50,
		PreserveTurns: 5,
		ContextBudget: 6000,
		JanitorPeriod: time.Hour,
	}
}

type conversation struct {
	createdAt        time.Time
	lastActivity     time.Time
	interactionCount int
	messages         []types.ConversationMessage
	userContext      *types.UserContext
	preferences      map[string]any
}

var _ Service = (*ServiceImpl)(nil)

// Service is the conversation context manager: bounded per-session message
// history, preference snapshots, and prompt-context assembly. Sessions are
// created implicitly on first contact; TTL expiry is the only removal path.
type Service interface {
	GetOrCreate(id string, userContext *types.UserContext) string
	AppendMessage(id, role, content string) bool
	AssembleContext(id string) string
	History(id string, limit int) []types.ConversationMessage
	UserContext(id string) *types.UserContext
	SavePreferences(id string, prefs map[string]any) bool
	Preferences(id string) map[string]any
	Stats(id string) (*types.SessionStats, error)
	CleanupExpired() int
}

type ServiceImpl struct {
	logger *slog.Logger
	cfg    Config

	mu       sync.RWMutex
	sessions map[string]*conversation
	stop     chan struct{}
	stopOnce sync.Once
}

func NewService(cfg Config, logger *slog.Logger) *ServiceImpl {
	s := &ServiceImpl{
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[string]*conversation),
		stop:     make(chan struct{}),
	}
	if cfg.JanitorPeriod > 0 {
		go s.janitor()
	}
	return s
}

// Close stops the background janitor.
func (s *ServiceImpl) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *ServiceImpl) janitor() {
	ticker := time.NewTicker(s.cfg.JanitorPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-s.stop:
			return
		}
	}
}

// GetOrCreate returns the identifier of a live session, minting a new one
// when the supplied id is empty, unknown or expired.
func (s *ServiceImpl) GetOrCreate(id string, userContext *types.UserContext) string {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if conv, ok := s.sessions[id]; ok && now.Sub(conv.lastActivity) < s.cfg.TTL {
			conv.lastActivity = now
			conv.interactionCount++
			if userContext != nil {
				conv.userContext = userContext
			}
			return id
		}
	}

	id = uuid.New().String()
	s.sessions[id] = &conversation{
		createdAt:    now,
		lastActivity: now,
		userContext:  userContext,
	}
	s.logger.Debug("created conversation session", slog.String("session_id", id))
	return id
}

func (s *ServiceImpl) live(id string) *conversation {
	conv, ok := s.sessions[id]
	if !ok || time.Since(conv.lastActivity) >= s.cfg.TTL {
		return nil
	}
	return conv
}

// AppendMessage records a turn; messages are immutable once appended.
// History is capped at MaxMessages, dropping from the oldest end.
func (s *ServiceImpl) AppendMessage(id, role, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.live(id)
	if conv == nil {
		return false
	}
	conv.messages = append(conv.messages, types.ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if over := len(conv.messages) - s.cfg.MaxMessages; over > 0 {
		conv.messages = conv.messages[over:]
	}
	conv.lastActivity = time.Now()
	return true
}

// AssembleContext renders the session history as a prompt block, truncating
// from the oldest end once the character budget is exceeded. The most
// recent PreserveTurns turns are always kept verbatim; no summarization
// happens beyond truncation.
func (s *ServiceImpl) AssembleContext(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.live(id)
	if conv == nil || len(conv.messages) == 0 {
		return ""
	}

	lines := make([]string, len(conv.messages))
	for i, m := range conv.messages {
		role := "Human"
		if m.Role == "assistant" {
			role = "Assistant"
		}
		lines[i] = fmt.Sprintf("%s: %s", role, m.Content)
	}

	start := 0
	if preserved := len(lines) - s.cfg.PreserveTurns; preserved > 0 {
		start = preserved
	}
	total := 0
	for _, l := range lines[start:] {
		total += len(l) + 1
	}
	// Walk older turns back in, newest-first, while budget remains.
	for i := start - 1; i >= 0; i-- {
		if total+len(lines[i])+1 > s.cfg.ContextBudget {
			break
		}
		total += len(lines[i]) + 1
		start = i
	}
	return strings.Join(lines[start:], "\n")
}

func (s *ServiceImpl) History(id string, limit int) []types.ConversationMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.live(id)
	if conv == nil {
		return nil
	}
	msgs := conv.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]types.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out
}

func (s *ServiceImpl) UserContext(id string) *types.UserContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.live(id)
	if conv == nil || conv.userContext == nil {
		return nil
	}
	uc := *conv.userContext
	return &uc
}

func (s *ServiceImpl) SavePreferences(id string, prefs map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.live(id)
	if conv == nil {
		return false
	}
	conv.preferences = prefs
	conv.lastActivity = time.Now()
	return true
}

func (s *ServiceImpl) Preferences(id string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.live(id)
	if conv == nil || conv.preferences == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(conv.preferences))
	for k, v := range conv.preferences {
		out[k] = v
	}
	return out
}

func (s *ServiceImpl) Stats(id string) (*types.SessionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.live(id)
	if conv == nil {
		return nil, types.ErrSessionNotFound
	}
	return &types.SessionStats{
		SessionID:            id,
		CreatedAt:            conv.createdAt,
		LastActivity:         conv.lastActivity,
		InteractionCount:     conv.interactionCount,
		ConversationMessages: len(conv.messages),
		HasPreferences:       conv.preferences != nil,
	}, nil
}

// CleanupExpired removes sessions idle past the TTL and reports how many
// were dropped.
func (s *ServiceImpl) CleanupExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, conv := range s.sessions {
		if now.Sub(conv.lastActivity) >= s.cfg.TTL {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("cleaned up expired sessions", slog.Int("count", removed))
	}
	return removed
}
