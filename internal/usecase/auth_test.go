package usecase

import (
	"context"
	"testing"

	scaffold "github.com/metanet-platform/scaffold-app"
	"github.com/metanet-platform/scaffold-app/internal/domain"
)

// --- mocks ---

type mockUserRepo struct {
	users  map[string]domain.User
	nextID int64

	// createConflicts forces the next n Create calls to fail with a
	// duplicate-key error, simulating a lost registration race.
	createConflicts int
	// raceWinner is installed into the store when a forced conflict
	// fires, imitating the concurrent winner's committed record.
	raceWinner *domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]domain.User{}}
}

func (m *mockUserRepo) GetBySigningKey(ctx context.Context, key string) (domain.User, error) {
	u, ok := m.users[key]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *mockUserRepo) GetByPlatformAddress(ctx context.Context, address string) (domain.User, error) {
	for _, u := range m.users {
		if u.PlatformAddress != nil && *u.PlatformAddress == address {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, name string) (domain.User, error) {
	for _, u := range m.users {
		if u.Username != nil && *u.Username == name {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFoundError{Resource: "user"}
}

func (m *mockUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if m.createConflicts > 0 {
		m.createConflicts--
		if m.raceWinner != nil {
			m.users[m.raceWinner.SigningPublicKey] = *m.raceWinner
			m.raceWinner = nil
		}
		return domain.User{}, domain.ConflictError{}
	}
	if _, ok := m.users[user.SigningPublicKey]; ok {
		return domain.User{}, domain.ConflictError{}
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.SigningPublicKey] = user
	return user, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user domain.User) (domain.User, error) {
	if _, ok := m.users[user.SigningPublicKey]; !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	m.users[user.SigningPublicKey] = user
	return user, nil
}

func (m *mockUserRepo) HasAnyAdmin(ctx context.Context) (bool, error) {
	for _, u := range m.users {
		if u.HasRole(domain.RoleAdmin) {
			return true, nil
		}
	}
	return false, nil
}

type mockEvents struct {
	published []scaffold.Event
}

func (m *mockEvents) Publish(ctx context.Context, event scaffold.Event) error {
	m.published = append(m.published, event)
	return nil
}

func openAuthUsecase(repo *mockUserRepo) *AuthUsecase {
	return NewAuthUsecase(repo, &mockEvents{}, domain.RegistrationOpen, domain.LookupBySigningKey)
}

// --- tests ---

func TestRegisterCreatesRecordWithBaseline(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	out, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
		Username:        "alice",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !out.IsNewUser {
		t.Fatalf("expected isNewUser=true")
	}
	if !out.User.HasRole(domain.BaselineRole) {
		t.Fatalf("expected baseline role on creation")
	}
	if out.User.Status != domain.UserStatusActive {
		t.Fatalf("expected active status, got %s", out.User.Status)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	req := &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	}

	if _, err := uc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	out, err := uc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("replayed register failed: %v", err)
	}
	if out.IsNewUser {
		t.Fatalf("replay must land on the existing record")
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(repo.users))
	}
}

func TestRegisterRejectsTakenPlatformAddress(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	if _, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk2"},
		PlatformAddress: "addr1",
	})
	var conflict domain.ConflictError
	if !asConflict(err, &conflict) || conflict.Field != "platformAddress" {
		t.Fatalf("expected platformAddress conflict, got %v", err)
	}
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	if _, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
		Username:        "alice",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk2"},
		PlatformAddress: "addr2",
		Username:        "alice",
	})
	var conflict domain.ConflictError
	if !asConflict(err, &conflict) || conflict.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}

	// same user re-registering the same name is not a self-conflict
	if _, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
		Username:        "alice",
	}); err != nil {
		t.Fatalf("self re-register failed: %v", err)
	}
}

func TestRegisterRaceLoserLandsOnFound(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	winner := domain.User{
		SigningPublicKey: "pk1",
		Roles:            []string{domain.BaselineRole},
		Status:           domain.UserStatusActive,
		PlatformAddress:  optional("addr1"),
	}
	repo.createConflicts = 1
	repo.raceWinner = &winner

	out, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	})
	if err != nil {
		t.Fatalf("race loser must not surface an error: %v", err)
	}
	if out.IsNewUser {
		t.Fatalf("race loser must be downgraded to authentication")
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one record after race, got %d", len(repo.users))
	}
}

func TestAuthenticateUnknownKey(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	_, err := uc.Authenticate(context.Background(), &scaffold.AuthenticateRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk-unknown"},
		PlatformAddress: "addr1",
	})
	var notFound domain.NotFoundError
	if !asNotFound(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAuthenticateRejectsIdentityMismatch(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	if _, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := uc.Authenticate(context.Background(), &scaffold.AuthenticateRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr-other",
	})
	if err != domain.ErrIdentityMismatch {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestAuthenticateUpdatesLastAuthenticatedAt(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	out, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	before := out.User.LastAuthenticatedAt

	got, err := uc.Authenticate(context.Background(), &scaffold.AuthenticateRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	})
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if got.User.LastAuthenticatedAt.Before(before) {
		t.Fatalf("expected lastAuthenticatedAt to move forward")
	}
}

func TestAuthOrRegisterClosedModeRejects(t *testing.T) {
	repo := newMockUserRepo()
	uc := NewAuthUsecase(repo, &mockEvents{}, domain.RegistrationClose, domain.LookupBySigningKey)

	_, err := uc.AuthOrRegister(context.Background(), &scaffold.AuthOrRegisterRequest{
		Envelope: scaffold.Envelope{SigningPublicKey: "pk1"},
	})
	var notFound domain.NotFoundError
	if !asNotFound(err, &notFound) {
		t.Fatalf("expected NotFoundError in closed mode, got %v", err)
	}
	if len(repo.users) != 0 {
		t.Fatalf("closed mode must not create records")
	}
}

func TestAuthOrRegisterAppliesProfileUpdates(t *testing.T) {
	repo := newMockUserRepo()
	uc := openAuthUsecase(repo)

	if _, err := uc.AuthOrRegister(context.Background(), &scaffold.AuthOrRegisterRequest{
		Envelope: scaffold.Envelope{SigningPublicKey: "pk1"},
		Username: "alice",
	}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	out, err := uc.AuthOrRegister(context.Background(), &scaffold.AuthOrRegisterRequest{
		Envelope:    scaffold.Envelope{SigningPublicKey: "pk1"},
		DisplayName: "Alice A.",
		AvatarURL:   "https://example.com/a.png",
	})
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if out.IsNewUser {
		t.Fatalf("expected existing record")
	}
	if out.User.DisplayName != "Alice A." || out.User.AvatarURL != "https://example.com/a.png" {
		t.Fatalf("profile updates not applied: %+v", out.User)
	}
	if out.User.Username == nil || *out.User.Username != "alice" {
		t.Fatalf("unrelated fields must be preserved")
	}
}

func addressAuthUsecase(repo *mockUserRepo) *AuthUsecase {
	return NewAuthUsecase(repo, &mockEvents{}, domain.RegistrationOpen, domain.LookupByPlatformAddress)
}

func TestAddressModeAuthenticatesByAddress(t *testing.T) {
	repo := newMockUserRepo()
	uc := addressAuthUsecase(repo)

	if _, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	out, err := uc.Authenticate(context.Background(), &scaffold.AuthenticateRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	})
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if out.IsNewUser {
		t.Fatalf("expected existing record")
	}
	if out.User.SigningPublicKey != "pk1" {
		t.Fatalf("wrong record: %+v", out.User)
	}
}

func TestAddressModeRejectsForeignKey(t *testing.T) {
	repo := newMockUserRepo()
	uc := addressAuthUsecase(repo)

	if _, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk-victim"},
		PlatformAddress: "addr-victim",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// a different keypair naming the victim's address must never land
	// on the victim's record
	_, err := uc.Authenticate(context.Background(), &scaffold.AuthenticateRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk-attacker"},
		PlatformAddress: "addr-victim",
	})
	if err != domain.ErrIdentityMismatch {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestAddressModeRegisterExistingAddressNewKey(t *testing.T) {
	repo := newMockUserRepo()
	uc := addressAuthUsecase(repo)

	if _, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk1"},
		PlatformAddress: "addr1",
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, err := uc.Register(context.Background(), &scaffold.RegisterRequest{
		Envelope:        scaffold.Envelope{SigningPublicKey: "pk2"},
		PlatformAddress: "addr1",
	})
	if err != domain.ErrIdentityMismatch {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("claimed address must not create a second record")
	}
}

// --- helpers ---

func asConflict(err error, target *domain.ConflictError) bool {
	c, ok := err.(domain.ConflictError)
	if !ok {
		return false
	}
	*target = c
	return true
}

func asNotFound(err error, target *domain.NotFoundError) bool {
	n, ok := err.(domain.NotFoundError)
	if !ok {
		return false
	}
	*target = n
	return true
}
