package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roostchat/roost/internal/models"
)

type memUserStore struct {
	mu     sync.Mutex
	seq    int
	byID   map[string]*models.User
	byName map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byID:   make(map[string]*models.User),
		byName: make(map[string]*models.User),
	}
}

func (m *memUserStore) Create(username, displayName, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	u := &models.User{
		ID:           username + "-id",
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Status:       models.StatusOffline,
	}
	m.byID[u.ID] = u
	m.byName[u.Username] = u
	return u, nil
}

func (m *memUserStore) GetByID(id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func (m *memUserStore) GetByUsername(username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[username], nil
}

func (m *memUserStore) UpdateStatus(userID string, status models.Status, awayText string) error {
	return nil
}

func (m *memUserStore) GetStatus(userID string) (models.Status, string, error) {
	return models.StatusOffline, "", nil
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(newMemUserStore(), time.Minute)
	defer svc.Close()

	userID, err := svc.Register("alice", "Alice", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if userID == "" {
		t.Fatal("empty user id")
	}

	token, loggedID, err := svc.Login("alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedID != userID {
		t.Errorf("login id = %q, want %q", loggedID, userID)
	}

	verifiedID, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verifiedID != userID {
		t.Errorf("verified id = %q, want %q", verifiedID, userID)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc := NewService(newMemUserStore(), time.Minute)
	defer svc.Close()

	if _, err := svc.Register("alice", "", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register("alice", "", "pw2"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate register: got %v, want ErrUserExists", err)
	}
}

func TestRegisterRejectsBlankCredentials(t *testing.T) {
	svc := NewService(newMemUserStore(), time.Minute)
	defer svc.Close()

	if _, err := svc.Register("", "", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("blank username: got %v", err)
	}
	if _, err := svc.Register("alice", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("blank password: got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(newMemUserStore(), time.Minute)
	defer svc.Close()

	if _, err := svc.Register("alice", "", "hunter2"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Login("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, _, err := svc.Login("nobody", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestVerifyRejectsUnknownAndRevokedTokens(t *testing.T) {
	svc := NewService(newMemUserStore(), time.Minute)
	defer svc.Close()

	if _, err := svc.Verify("bogus"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown token: got %v", err)
	}

	if _, err := svc.Register("alice", "", "pw"); err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.Login("alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	svc.Revoke(token)
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked token: got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	svc := NewService(newMemUserStore(), 20*time.Millisecond)
	defer svc.Close()

	if _, err := svc.Register("alice", "", "pw"); err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.Login("alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: got %v", err)
	}
}
