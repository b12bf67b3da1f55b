package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stubs. Each one guards its state with a mutex and mirrors the
// conditional updates the Mongo repositories perform.
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	seq     int
	creates int
	updates int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = append([]string(nil), u.Roles...)
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return nil, domain.ErrAlreadyInUse
		}
	}
	r.seq++
	r.creates++
	created := cloneUser(user)
	created.ID = fmt.Sprintf("%d", r.seq)
	r.users[created.ID] = cloneUser(created)
	return created, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	return err == nil, nil
}

func (r *stubUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.updates++
	r.users[user.ID] = cloneUser(user)
	return nil
}

type stubRoleRepo struct {
	roles []domain.Role
	err   error
}

func (r *stubRoleRepo) DefaultRoles(context.Context) ([]domain.Role, error) {
	return r.roles, r.err
}

type stubRoleMapping struct {
	byOperation map[string][]string
	err         error
	calls       int
}

func (m *stubRoleMapping) RolesFor(_ context.Context, operation string) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.byOperation[operation], nil
}

type stubRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
	seq    int
}

func newStubRefreshRepo() *stubRefreshRepo {
	return &stubRefreshRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *stubRefreshRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	token.ID = fmt.Sprintf("rt-%d", r.seq)
	clone := *token
	r.tokens[token.ID] = &clone
	return nil
}

func (r *stubRefreshRepo) FindByToken(_ context.Context, value string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == value {
			clone := *t
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubRefreshRepo) IncrementCount(_ context.Context, id string, maxUses int64) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || (maxUses > 0 && t.RefreshCount >= maxUses) {
		return nil, domain.ErrNotFound
	}
	t.RefreshCount++
	clone := *t
	return &clone, nil
}

func (r *stubRefreshRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, id)
	return nil
}

func (r *stubRefreshRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

func (r *stubRefreshRepo) byID(id string) (*domain.RefreshToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	return t, ok
}

type stubDeviceRepo struct {
	mu      sync.Mutex
	devices map[string]*domain.UserDevice
}

func newStubDeviceRepo() *stubDeviceRepo {
	return &stubDeviceRepo{devices: make(map[string]*domain.UserDevice)}
}

func deviceKey(userID, deviceID string) string { return userID + "/" + deviceID }

func (r *stubDeviceRepo) FindByUserAndDevice(_ context.Context, userID, deviceID string) (*domain.UserDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceKey(userID, deviceID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *stubDeviceRepo) FindByRefreshTokenID(_ context.Context, tokenID string) (*domain.UserDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.RefreshTokenID == tokenID {
			clone := *d
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubDeviceRepo) Bind(_ context.Context, device *domain.UserDevice) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceKey(device.UserID, device.DeviceID)
	var previous string
	if old, ok := r.devices[key]; ok {
		previous = old.RefreshTokenID
		device.ID = old.ID
	} else {
		device.ID = "dev-" + key
	}
	clone := *device
	r.devices[key] = &clone
	return previous, nil
}

func (r *stubDeviceRepo) Deactivate(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceKey(userID, deviceID)]
	if !ok {
		return domain.ErrNotFound
	}
	d.RefreshActive = false
	d.RefreshTokenID = ""
	return nil
}

func (r *stubDeviceRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

type stubEmailRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.EmailVerificationToken // by user id
	seq    int
}

func newStubEmailRepo() *stubEmailRepo {
	return &stubEmailRepo{tokens: make(map[string]*domain.EmailVerificationToken)}
}

func (r *stubEmailRepo) Save(_ context.Context, token *domain.EmailVerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	token.ID = fmt.Sprintf("ev-%d", r.seq)
	clone := *token
	r.tokens[token.UserID] = &clone
	return nil
}

func (r *stubEmailRepo) FindByToken(_ context.Context, value string) (*domain.EmailVerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == value {
			clone := *t
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubEmailRepo) Regenerate(_ context.Context, id, value string, expiresAt time.Time) (*domain.EmailVerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.ID == id && t.Status == domain.TokenStatusPending {
			t.Token = value
			t.ExpiresAt = expiresAt
			clone := *t
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubEmailRepo) Confirm(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.ID == id {
			t.Status = domain.TokenStatusConfirmed
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *stubEmailRepo) forUser(userID string) *domain.EmailVerificationToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tokens[userID]
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

type stubResetRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.PasswordResetToken
	seq    int
}

func newStubResetRepo() *stubResetRepo {
	return &stubResetRepo{tokens: make(map[string]*domain.PasswordResetToken)}
}

func (r *stubResetRepo) Create(_ context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	token.ID = fmt.Sprintf("pr-%d", r.seq)
	clone := *token
	r.tokens[token.ID] = &clone
	return nil
}

func (r *stubResetRepo) FindByToken(_ context.Context, value string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == value {
			clone := *t
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubResetRepo) Claim(_ context.Context, id string, now time.Time) (*domain.PasswordResetToken, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || !t.Usable(now) {
		return nil, 0, domain.ErrNotFound
	}
	t.Claimed = true
	var n int64
	for _, other := range r.tokens {
		if other.UserID == t.UserID && other.ID != id && other.Active && !other.Claimed {
			other.Active = false
			n++
		}
	}
	clone := *t
	return &clone, n, nil
}

func (r *stubResetRepo) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[id]; ok {
		t.Active = false
	}
	return nil
}

type stubListener struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (l *stubListener) OnEmailVerified(_ context.Context, user *domain.User) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.users = append(l.users, user.ID)
	return nil
}

// plainHasher keeps tests fast; bcrypt is covered in password_test.go.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }
func (plainHasher) Matches(plain, hash string) bool  { return hash == "hashed:"+plain }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const testSecret = "test-secret"

type fixture struct {
	users    *stubUserRepo
	refresh  *stubRefreshRepo
	devices  *stubDeviceRepo
	emails   *stubEmailRepo
	resets   *stubResetRepo
	listener *stubListener
	codec    *TokenCodec
	svc      *AuthService

	refreshSvc *RefreshTokenService
	deviceSvc  *DeviceService
	emailSvc   *EmailVerificationService
	resetSvc   *PasswordResetService
}

func newFixture(maxUses int64) *fixture {
	f := &fixture{
		users:    newStubUserRepo(),
		refresh:  newStubRefreshRepo(),
		devices:  newStubDeviceRepo(),
		emails:   newStubEmailRepo(),
		resets:   newStubResetRepo(),
		listener: &stubListener{},
		codec:    NewTokenCodec(testSecret),
	}
	log := zerolog.Nop()
	f.refreshSvc = NewRefreshTokenService(f.refresh, time.Hour, maxUses, log)
	f.deviceSvc = NewDeviceService(f.devices, f.refreshSvc, log)
	f.emailSvc = NewEmailVerificationService(f.emails, time.Hour)
	f.resetSvc = NewPasswordResetService(f.resets, time.Hour, log)

	hasher := plainHasher{}
	f.svc = NewAuthService(AuthDeps{
		Users:         f.users,
		Roles:         &stubRoleRepo{roles: []domain.Role{{Name: domain.RoleUser, Default: true}}},
		Hasher:        hasher,
		Authenticator: NewPasswordAuthenticator(f.users, hasher),
		Codec:         f.codec,
		Devices:       f.deviceSvc,
		RefreshTokens: f.refreshSvc,
		Verifications: f.emailSvc,
		Resets:        f.resetSvc,
		Listener:      f.listener,
	}, 15*time.Minute, log)
	return f
}

func registerInput(name string) ports.RegisterInput {
	return ports.RegisterInput{
		Email:           strings.ToLower(name) + "@example.com",
		Username:        strings.ToLower(name),
		FirstName:       name,
		Password:        "s3cret",
		ConfirmPassword: "s3cret",
	}
}

// verifiedUser registers and confirms a user, returning its id.
func (f *fixture) verifiedUser(name string) string {
	res, err := f.svc.RegisterUser(context.Background(), registerInput(name))
	if err != nil {
		panic(err)
	}
	if _, err := f.svc.ConfirmEmailRegistration(context.Background(), res.VerificationToken.Token); err != nil {
		panic(err)
	}
	return res.User.ID
}

func loginInput(name, deviceID string) ports.LoginInput {
	return ports.LoginInput{
		Email:    strings.ToLower(name) + "@example.com",
		Password: "s3cret",
		Device:   domain.DeviceInfo{DeviceID: deviceID, DeviceType: "DEVICE_TYPE_ANDROID"},
	}
}
