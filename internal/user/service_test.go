// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexusforge/user-service/internal/core"
)

type serviceFixture struct {
	svc   *Service
	repo  *fakeRepo
	cache *fakeCache
	log   *eventLog
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	log := &eventLog{}
	repo := newFakeRepo(log)
	cache := newFakeCache(log)
	return &serviceFixture{
		svc:   NewService(repo, cache, fakeHasher{}, nil),
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func (f *serviceFixture) create(t *testing.T, email, username string) *User {
	t.Helper()
	u, err := f.svc.Create(context.Background(), CreateInput{
		Email:    email,
		Username: username,
		Password: "Abcd1234",
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestService_CreateThenGet(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateInput{
		Email:    "  A@X.com ",
		Username: " ABC ",
		Password: "Abcd1234",
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", created.Email)
	assert.Equal(t, "abc", created.Username)
	assert.True(t, created.IsActive)
	assert.False(t, created.IsVerified)
	assert.False(t, created.IsSuperuser)
	assert.Equal(t, "hashed:Abcd1234", created.PasswordHash)
	assert.Zero(t, f.cache.sets, "create does not write the cache")

	got, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "abc", got.Username)

	byEmail, err := f.svc.GetByEmail(ctx, "A@X.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byName, err := f.svc.GetByUsername(ctx, "Abc")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
}

func TestService_CreateDuplicates(t *testing.T) {
	f := newServiceFixture(t)
	f.create(t, "a@x.com", "abc")
	f.create(t, "b@x.com", "bcd")

	tests := []struct {
		name      string
		email     string
		username  string
		wantField string
	}{
		{"same email", "A@x.com", "new_name", FieldEmail},
		{"same username", "c@x.com", "ABC", FieldUsername},
		{"both collide, email wins", "a@x.com", "bcd", FieldEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), CreateInput{
				Email:    tt.email,
				Username: tt.username,
				Password: "Abcd1234",
			})

			var dup *core.DuplicateFieldError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tt.wantField, dup.Field)
			assert.ErrorIs(t, err, core.ErrDuplicateKey)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestService_CreateLosesRaceToConstraint(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.createErr = fmt.Errorf("create user: %w",
		core.NewDuplicateFieldError(FieldEmail, "a@x.com"))

	_, err := f.svc.Create(context.Background(), CreateInput{
		Email:    "a@x.com",
		Username: "abc",
		Password: "Abcd1234",
	})

	var dup *core.DuplicateFieldError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, FieldEmail, dup.Field)
}

func TestService_GetByIDCacheAside(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.getByIDCalls)
	assert.Equal(t, 1, f.cache.sets)

	cached, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.getByIDCalls, "second read is served from cache")
	assert.Equal(t, "abc", cached.Username)
	assert.Empty(t, cached.PasswordHash)
}

func TestService_GetByIDIgnoresCacheWriteFailure(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")
	f.cache.setFails = true

	got, err := f.svc.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestService_GetByIDMissing(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Zero(t, f.cache.sets)
}

func TestService_ListNewestFirst(t *testing.T) {
	f := newServiceFixture(t)
	for i := 1; i <= 5; i++ {
		f.create(t, fmt.Sprintf("u%d@x.com", i), fmt.Sprintf("user_%d", i))
	}

	users, total, err := f.svc.List(context.Background(), ListParams{Skip: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, users, 2)
	assert.Equal(t, "user_5", users[0].Username)
	assert.Equal(t, "user_4", users[1].Username)

	resp := NewUserListResponse(users, total, 0, 2)
	assert.True(t, resp.HasMore)

	tail, total, err := f.svc.List(context.Background(), ListParams{Skip: 4, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, tail, 1)
	assert.False(t, NewUserListResponse(tail, total, 4, 2).HasMore)
}

func TestService_ListActiveFilter(t *testing.T) {
	f := newServiceFixture(t)
	a := f.create(t, "a@x.com", "abc")
	f.create(t, "b@x.com", "bcd")

	_, err := f.svc.Update(context.Background(), a.ID, Patch{IsActive: ptr(false)})
	require.NoError(t, err)

	users, total, err := f.svc.List(context.Background(), ListParams{Limit: 10, IsActive: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "bcd", users[0].Username)
}

func TestService_UpdateKeepsCacheCoherent(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, u.ID, Patch{
		Username: ptr("NewName"),
		FullName: ptr("Ada Lovelace"),
		Password: ptr("Xyzw9876"),
	})
	require.NoError(t, err)
	assert.Equal(t, "newname", updated.Username)
	assert.Equal(t, "a@x.com", updated.Email, "unset fields are untouched")
	assert.Equal(t, "hashed:Xyzw9876", f.repo.raw(u.ID).PasswordHash)

	got, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newname", got.Username)
	require.NotNil(t, got.FullName)
	assert.Equal(t, "Ada Lovelace", *got.FullName)

	assert.Equal(t, []string{"repo.update", "cache.invalidate"}, f.log.list())
}

func TestService_UpdateDuplicates(t *testing.T) {
	f := newServiceFixture(t)
	a := f.create(t, "a@x.com", "abc")
	f.create(t, "b@x.com", "bcd")
	ctx := context.Background()

	_, err := f.svc.Update(ctx, a.ID, Patch{Email: ptr("B@x.com")})
	var dup *core.DuplicateFieldError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, FieldEmail, dup.Field)

	_, err = f.svc.Update(ctx, a.ID, Patch{Username: ptr("bcd")})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, FieldUsername, dup.Field)

	same, err := f.svc.Update(ctx, a.ID, Patch{Email: ptr("A@X.COM"), Username: ptr("abc")})
	require.NoError(t, err, "re-submitting own values is not a collision")
	assert.Equal(t, "a@x.com", same.Email)
}

func TestService_UpdateMissing(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Update(context.Background(), 99, Patch{FullName: ptr("x")})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, f.log.list())
}

func TestService_FailedWriteDoesNotInvalidate(t *testing.T) {
	log := &eventLog{}
	repo := newFakeRepo(log)
	cache := &mockCache{}
	svc := NewService(repo, cache, fakeHasher{}, nil)

	u := &User{Email: "a@x.com", Username: "abc", IsActive: true}
	require.NoError(t, repo.Create(context.Background(), u))

	repo.updateErr = errors.New("connection reset by peer")

	_, err := svc.Update(context.Background(), u.ID, Patch{FullName: ptr("x")})
	assert.ErrorContains(t, err, "connection reset")

	_, err = svc.VerifyEmail(context.Background(), u.ID)
	assert.Error(t, err)

	ok, err := svc.SoftDelete(context.Background(), u.ID)
	assert.False(t, ok)
	assert.Error(t, err)

	cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestService_SoftDeleteIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)

	ok, err := f.svc.SoftDelete(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	row := f.repo.raw(u.ID)
	assert.NotNil(t, row.DeletedAt)
	assert.False(t, row.IsActive)

	_, err = f.svc.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "deleted user is not served from cache")

	ok, err = f.svc.SoftDelete(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.SoftDelete(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SoftDeleteFreesEmailForReuse(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")

	ok, err := f.svc.SoftDelete(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, ok)

	again := f.create(t, "a@x.com", "abc")
	assert.NotEqual(t, u.ID, again.ID)
}

func TestService_VerifyEmail(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")
	ctx := context.Background()

	_, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)

	verified, err := f.svc.VerifyEmail(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.NotNil(t, verified.EmailVerifiedAt)

	got, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)

	_, err = f.svc.VerifyEmail(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_UpdateLastLogin(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")

	require.NoError(t, f.svc.UpdateLastLogin(context.Background(), u.ID))
	assert.NotNil(t, f.repo.raw(u.ID).LastLoginAt)
	assert.Equal(t, []string{"repo.last_login", "cache.invalidate"}, f.log.list())
}

func TestService_CheckCredentials(t *testing.T) {
	f := newServiceFixture(t)
	u := f.create(t, "a@x.com", "abc")
	ctx := context.Background()

	byEmail, err := f.svc.CheckCredentials(ctx, "A@x.com", "Abcd1234")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := f.svc.CheckCredentials(ctx, "ABC", "Abcd1234")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = f.svc.CheckCredentials(ctx, "abc", "wrong")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = f.svc.CheckCredentials(ctx, "nobody", "Abcd1234")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestService_CheckCredentialsRehashesLegacyDigest(t *testing.T) {
	f := newServiceFixture(t)
	u := &User{
		Email:        "old@x.com",
		Username:     "old",
		PasswordHash: "legacy:Abcd1234",
		IsActive:     true,
	}
	require.NoError(t, f.repo.Create(context.Background(), u))

	_, err := f.svc.CheckCredentials(context.Background(), "old", "Abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "hashed:Abcd1234", f.repo.raw(u.ID).PasswordHash)
}

func TestService_RealHasherRoundTrip(t *testing.T) {
	log := &eventLog{}
	svc := NewService(newFakeRepo(log), newFakeCache(log), core.NewPasswordHasher(), nil)

	u, err := svc.Create(context.Background(), CreateInput{
		Email:    "a@x.com",
		Username: "abc",
		Password: "Abcd1234",
	})
	require.NoError(t, err)
	assert.NotContains(t, u.PasswordHash, "Abcd1234")

	_, err = svc.CheckCredentials(context.Background(), "a@x.com", "Abcd1234")
	assert.NoError(t, err)
}
