// AngelaMos | 2026
// fakes_test.go

package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/nexusforge/user-service/internal/core"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeRepo struct {
	mu     sync.Mutex
	rows   map[int64]User
	nextID int64
	clock  time.Time
	log    *eventLog

	getByIDCalls int
	createErr    error
	updateErr    error
}

func newFakeRepo(log *eventLog) *fakeRepo {
	return &fakeRepo{
		rows:  make(map[int64]User),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		log:   log,
	}
}

func (f *fakeRepo) Create(_ context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}

	for _, row := range f.rows {
		if row.DeletedAt != nil {
			continue
		}
		if row.Email == u.Email {
			return core.NewDuplicateFieldError(FieldEmail, u.Email)
		}
		if row.Username == u.Username {
			return core.NewDuplicateFieldError(FieldUsername, u.Username)
		}
	}

	f.nextID++
	f.clock = f.clock.Add(time.Second)
	u.ID = f.nextID
	u.CreatedAt = f.clock
	u.UpdatedAt = f.clock
	f.rows[u.ID] = *u
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByIDCalls++

	row, ok := f.rows[id]
	if !ok || row.DeletedAt != nil {
		return nil, core.ErrNotFound
	}
	return &row, nil
}

func (f *fakeRepo) findBy(match func(User) bool) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, row := range f.rows {
		if row.DeletedAt == nil && match(row) {
			return &row, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	return f.findBy(func(u User) bool { return u.Email == email })
}

func (f *fakeRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	return f.findBy(func(u User) bool { return u.Username == username })
}

func (f *fakeRepo) List(_ context.Context, p ListParams) ([]User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []User
	for _, row := range f.rows {
		if row.DeletedAt != nil {
			continue
		}
		if p.IsActive != nil && row.IsActive != *p.IsActive {
			continue
		}
		matched = append(matched, row)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if p.Skip >= total {
		return []User{}, total, nil
	}
	end := p.Skip + p.Limit
	if end > total {
		end = total
	}
	return matched[p.Skip:end], total, nil
}

func (f *fakeRepo) Update(_ context.Context, u *User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}

	row, ok := f.rows[u.ID]
	if !ok || row.DeletedAt != nil {
		return core.ErrNotFound
	}

	f.clock = f.clock.Add(time.Second)
	u.UpdatedAt = f.clock
	f.rows[u.ID] = *u
	f.log.add("repo.update")
	return nil
}

func (f *fakeRepo) mutate(id int64, event string, fn func(*User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}

	row, ok := f.rows[id]
	if !ok || row.DeletedAt != nil {
		return core.ErrNotFound
	}

	fn(&row)
	f.rows[id] = row
	f.log.add(event)
	return nil
}

func (f *fakeRepo) SoftDelete(_ context.Context, id int64, at time.Time) error {
	return f.mutate(id, "repo.soft_delete", func(u *User) {
		u.DeletedAt = &at
		u.IsActive = false
	})
}

func (f *fakeRepo) MarkEmailVerified(_ context.Context, id int64, at time.Time) error {
	return f.mutate(id, "repo.verify_email", func(u *User) {
		u.IsVerified = true
		u.EmailVerifiedAt = &at
	})
}

func (f *fakeRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return f.mutate(id, "repo.last_login", func(u *User) {
		u.LastLoginAt = &at
	})
}

// raw returns the stored row, including soft-deleted ones.
func (f *fakeRepo) raw(id int64) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeCache struct {
	mu       sync.Mutex
	entries  map[string]User
	log      *eventLog
	sets     int
	setFails bool
}

func newFakeCache(log *eventLog) *fakeCache {
	return &fakeCache{entries: make(map[string]User), log: log}
}

func (c *fakeCache) Get(_ context.Context, id string) (User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.entries[id]
	return u, ok
}

func (c *fakeCache) Set(_ context.Context, id string, u User) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setFails {
		return false
	}
	u.PasswordHash = ""
	c.entries[id] = u
	return true
}

func (c *fakeCache) Invalidate(_ context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.log.add("cache.invalidate")
	return true
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, id string) (User, bool) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, id string, u User) bool {
	args := m.Called(ctx, id, u)
	return args.Bool(0)
}

func (m *mockCache) Invalidate(ctx context.Context, id string) bool {
	args := m.Called(ctx, id)
	return args.Bool(0)
}

// fakeHasher keeps tests fast; "legacy:" digests report NeedsRehash.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(password, encodedHash string) bool {
	return encodedHash == "hashed:"+password || encodedHash == "legacy:"+password
}

func (h fakeHasher) VerifyTimingSafe(password string, encodedHash *string) bool {
	if encodedHash == nil {
		return false
	}
	return h.Verify(password, *encodedHash)
}

func (fakeHasher) NeedsRehash(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "legacy:")
}
