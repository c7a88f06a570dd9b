package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medipos/medipos/internal/shared"
)

type fakeRepo struct {
	users map[string]*User
}

func (f *fakeRepo) FindByKeyID(ctx context.Context, keyID string) (*User, error) {
	u, ok := f.users[keyID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func newFakeRepo(t *testing.T) *fakeRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &fakeRepo{users: map[string]*User{
		"key1": {ID: 1, Name: "Admin", Role: RoleAdmin, KeyID: "key1", KeyHash: string(hash), IsActive: true},
		"key2": {ID: 2, Name: "Counter", Role: RolePharmacist, KeyID: "key2", KeyHash: string(hash), IsActive: false},
	}}
}

func TestResolve(t *testing.T) {
	svc := NewService(newFakeRepo(t))
	ctx := context.Background()

	p, err := svc.Resolve(ctx, "key1.s3cret")
	require.NoError(t, err)
	require.EqualValues(t, 1, p.UserID)
	require.True(t, p.IsAdmin())
}

func TestResolveRejections(t *testing.T) {
	svc := NewService(newFakeRepo(t))
	ctx := context.Background()

	cases := []struct {
		name       string
		credential string
	}{
		{"malformed", "no-separator"},
		{"empty secret", "key1."},
		{"unknown key", "missing.s3cret"},
		{"wrong secret", "key1.wrong"},
		{"inactive user", "key2.s3cret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Resolve(ctx, tc.credential)
			require.ErrorIs(t, err, shared.ErrInvalidCredentials)
		})
	}
}

func TestMiddlewareRequire(t *testing.T) {
	svc := NewService(newFakeRepo(t))
	mw := Middleware{Service: svc}

	var seen *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer key1.s3cret")
	rec := httptest.NewRecorder()
	mw.Require(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "Admin", seen.Name)
}

func TestMiddlewareRequireMissingHeader(t *testing.T) {
	svc := NewService(newFakeRepo(t))
	mw := Middleware{Service: svc}

	rec := httptest.NewRecorder()
	mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRequireAdmin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &fakeRepo{users: map[string]*User{
		"counter": {ID: 3, Name: "Counter", Role: RolePharmacist, KeyID: "counter", KeyHash: string(hash), IsActive: true},
	}}
	mw := Middleware{Service: NewService(repo)}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer counter.s3cret")
	rec := httptest.NewRecorder()
	mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
