// Package auth owns account registration and the in-memory session table.
// Sessions are opaque tokens handed to clients; everything downstream asks
// only for the *model.User behind the current request and treats a nil
// answer as "signed out".
package auth

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/ggeejehd-eng/mj36/model"
	"github.com/ggeejehd-eng/mj36/store"
	"github.com/ggeejehd-eng/mj36/utils"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

var (
	// ErrUsernameTaken is returned by Register when the uniqueness pre-check
	// finds an existing account. The users collection itself does not enforce
	// uniqueness, so a concurrent register can still slip through; the
	// pre-check only covers the common path.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials covers both unknown usernames and bad passwords,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type ctxKey int

const sessionTokenKey ctxKey = 0

// WithToken attaches a session token to ctx for CurrentUser to pick up.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenKey, token)
}

// TokenFromContext returns the session token previously attached with
// WithToken, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenKey).(string)
	return token
}

// Manager maps session tokens to user ids. Tokens live for the lifetime of
// the process; restarting the server signs everyone out.
type Manager struct {
	adapter *store.Adapter

	mu       sync.RWMutex
	sessions map[string]string // token -> user id
}

func NewManager(adapter *store.Adapter) *Manager {
	return &Manager{
		adapter:  adapter,
		sessions: make(map[string]string),
	}
}

// Register creates an account after a uniqueness pre-check, hashes the
// password with bcrypt, and opens a session for the new user.
func (m *Manager) Register(ctx context.Context, username, password string) (*model.User, string, error) {
	if username == "" || password == "" {
		return nil, "", errors.New("username and password are required")
	}
	if existing := m.adapter.UserByUsername(ctx, username); existing != nil {
		return nil, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", errors.Wrap(err, "hash password")
	}

	user, err := m.adapter.AddUser(ctx, username, string(hash), "", false)
	if err != nil {
		return nil, "", err
	}

	token := m.openSession(user.Id)
	Logger.Log.Infof("registered user %s", username)
	return user, token, nil
}

// Login verifies the password against the stored bcrypt hash, bumps
// lastActive and opens a session.
func (m *Manager) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user := m.adapter.UserByUsername(ctx, username)
	if user == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	// Best effort; a failed lastActive write should not block the login.
	now := utils.NowMillis()
	if err := m.adapter.SaveUserData(ctx, user.Id, map[string]interface{}{"lastActive": now}); err != nil {
		Logger.Log.Errorf("update lastActive for %s: %v", username, err)
	} else {
		user.LastActive = now
	}

	token := m.openSession(user.Id)
	return user, token, nil
}

// Logout drops the session. Unknown tokens are a no-op.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// CurrentUser resolves the session token carried in ctx to a user, or nil
// when there is no valid session. Satisfies viewstate.IdentityProvider.
func (m *Manager) CurrentUser(ctx context.Context) *model.User {
	token := TokenFromContext(ctx)
	if token == "" {
		return nil
	}

	m.mu.RLock()
	userID, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	return m.adapter.UserByID(ctx, userID)
}

// VerifyAdminCode checks a dashboard access code against the ADMIN_CODE
// environment variable. An unset variable means the dashboard is closed.
func (m *Manager) VerifyAdminCode(code string) bool {
	expected := os.Getenv("ADMIN_CODE")
	return expected != "" && code == expected
}

func (m *Manager) openSession(userID string) string {
	token := utils.RandomAlphabetString(32)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = userID
	return token
}
