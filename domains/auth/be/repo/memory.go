package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medikube/platform/domains/auth/be/service"
)

// MemoryUsers is an in-memory service.UserRepository for tests and early
// development.
type MemoryUsers struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]service.User
	profiles map[uuid.UUID]service.Profile
	roles    map[uuid.UUID]service.Role
	roleOf   map[uuid.UUID]uuid.UUID // userID -> roleID
}

// NewMemoryUsers constructs a MemoryUsers repository.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		users:    make(map[uuid.UUID]service.User),
		profiles: make(map[uuid.UUID]service.Profile),
		roles:    make(map[uuid.UUID]service.Role),
		roleOf:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *MemoryUsers) CreateUser(ctx context.Context, u service.User) (service.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return service.User{}, service.ErrConflict
		}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryUsers) GetUser(ctx context.Context, id uuid.UUID) (service.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return service.User{}, service.ErrNotFound
	}
	return u, nil
}

func (r *MemoryUsers) GetUserByUsername(ctx context.Context, username string) (service.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return service.User{}, service.ErrNotFound
}

func (r *MemoryUsers) GetUserByEmail(ctx context.Context, email string) (service.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return service.User{}, service.ErrNotFound
}

func (r *MemoryUsers) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return service.ErrNotFound
	}
	u.IsActive = false
	r.users[id] = u

	if p, ok := r.profiles[id]; ok {
		p.IsActive = false
		r.profiles[id] = p
	}
	return nil
}

func (r *MemoryUsers) CreateProfile(ctx context.Context, p service.Profile, roleID *uuid.UUID) (service.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.UserID]; exists {
		return service.Profile{}, service.ErrConflict
	}

	if roleID != nil {
		role, ok := r.roles[*roleID]
		if !ok {
			return service.Profile{}, service.ErrNotFound
		}
		name := role.Name
		p.Role = &name
		r.roleOf[p.UserID] = *roleID
	}

	r.profiles[p.UserID] = p
	return p, nil
}

func (r *MemoryUsers) GetProfile(ctx context.Context, userID uuid.UUID) (service.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return service.Profile{}, service.ErrNotFound
	}
	return p, nil
}

func (r *MemoryUsers) UpdateProfileFields(ctx context.Context, userID uuid.UUID, patch service.ProfilePatch) (service.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return service.Profile{}, service.ErrNotFound
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	if patch.Bio != nil {
		p.Bio = *patch.Bio
	}
	r.profiles[userID] = p
	return p, nil
}

func (r *MemoryUsers) SetProfileRole(ctx context.Context, userID, roleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return service.ErrNotFound
	}
	role, ok := r.roles[roleID]
	if !ok {
		return service.ErrNotFound
	}
	name := role.Name
	p.Role = &name
	r.profiles[userID] = p
	r.roleOf[userID] = roleID
	return nil
}

func (r *MemoryUsers) GetOrCreateRole(ctx context.Context, tenantID uuid.UUID, name service.RoleName, description string) (service.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range r.roles {
		if role.TenantID == tenantID && role.Name == name {
			return role, nil
		}
	}

	role := service.Role{ID: uuid.New(), TenantID: tenantID, Name: name, Description: description}
	r.roles[role.ID] = role
	return role, nil
}

// MemoryTokens is an in-memory service.TokenRepository.
type MemoryTokens struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]service.Token
	byValue map[string]uuid.UUID // token value -> id
}

// NewMemoryTokens constructs a MemoryTokens repository.
func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{
		byID:    make(map[uuid.UUID]service.Token),
		byValue: make(map[string]uuid.UUID),
	}
}

func (r *MemoryTokens) IssueExclusive(ctx context.Context, t service.Token) (service.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.byID {
		if existing.UserID == t.UserID && existing.TenantID == t.TenantID && existing.IsActive {
			existing.IsActive = false
			r.byID[id] = existing
		}
	}

	t.IsActive = true
	t.CreatedAt = time.Now().UTC()
	r.byID[t.ID] = t
	r.byValue[t.Value] = t.ID
	return t, nil
}

func (r *MemoryTokens) GetActive(ctx context.Context, value string, tenantID *uuid.UUID) (service.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byValue[value]
	if !ok {
		return service.Token{}, service.ErrNotFound
	}
	t := r.byID[id]
	if !t.IsActive {
		return service.Token{}, service.ErrNotFound
	}
	if tenantID != nil && t.TenantID != *tenantID {
		return service.Token{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryTokens) Deactivate(ctx context.Context, tokenID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.byID[tokenID]; ok {
		t.IsActive = false
		r.byID[tokenID] = t
	}
	return nil
}

func (r *MemoryTokens) Revoke(ctx context.Context, value string, tenantID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byValue[value]
	if !ok {
		return false, nil
	}
	t := r.byID[id]
	if !t.IsActive {
		return false, nil
	}
	if tenantID != nil && t.TenantID != *tenantID {
		return false, nil
	}
	t.IsActive = false
	r.byID[id] = t
	return true, nil
}

func (r *MemoryTokens) SweepExpired(ctx context.Context, tenantID *uuid.UUID, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.byID {
		if !t.IsActive || t.ExpiresAt.After(now) {
			continue
		}
		if tenantID != nil && t.TenantID != *tenantID {
			continue
		}
		t.IsActive = false
		r.byID[id] = t
		n++
	}
	return n, nil
}

// ActiveCount reports how many active tokens a user holds within a tenant.
// Test helper.
func (r *MemoryTokens) ActiveCount(userID, tenantID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, t := range r.byID {
		if t.UserID == userID && t.TenantID == tenantID && t.IsActive {
			count++
		}
	}
	return count
}

// MemoryAccounts is an in-memory service.AccountDirectory.
type MemoryAccounts struct {
	mu     sync.Mutex
	nextID int64
	byUser map[uuid.UUID]service.AccountRef
}

// NewMemoryAccounts constructs a MemoryAccounts directory.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{byUser: make(map[uuid.UUID]service.AccountRef)}
}

func (r *MemoryAccounts) CreateAccount(ctx context.Context, tenantID, userID uuid.UUID, verificationToken string) (service.AccountRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUser[userID]; exists {
		return service.AccountRef{}, service.ErrConflict
	}

	r.nextID++
	ref := service.AccountRef{
		AccountID:     r.nextID,
		AccountNumber: accountNumber(r.nextID),
		Balance:       decimal.Zero,
	}
	r.byUser[userID] = ref
	return ref, nil
}

func (r *MemoryAccounts) GetAccountByUser(ctx context.Context, userID uuid.UUID) (service.AccountRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.byUser[userID]
	if !ok {
		return service.AccountRef{}, service.ErrNotFound
	}
	return ref, nil
}

func (r *MemoryAccounts) StampLogin(ctx context.Context, userID uuid.UUID, ip *string, at time.Time) error {
	return nil
}

func accountNumber(id int64) string {
	return fmt.Sprintf("ACC%08d", id)
}
