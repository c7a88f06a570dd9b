package customers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	nextID    int64
	customers map[int64]Customer
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, customers: make(map[int64]Customer)}
}

func (f *fakeRepo) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	var out []Customer
	for _, c := range f.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (*Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (f *fakeRepo) Create(ctx context.Context, c Customer) (int64, error) {
	for _, existing := range f.customers {
		if existing.Phone == c.Phone {
			return 0, ErrPhoneTaken
		}
	}
	c.ID = f.nextID
	f.nextID++
	f.customers[c.ID] = c
	return c.ID, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	c, ok := f.customers[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["phone"]; ok {
		phone := v.(string)
		for otherID, other := range f.customers {
			if otherID != id && other.Phone == phone {
				return ErrPhoneTaken
			}
		}
		c.Phone = phone
	}
	if v, ok := updates["city"]; ok {
		c.Address.City = v.(string)
	}
	f.customers[id] = c
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.customers[id]; !ok {
		return ErrNotFound
	}
	delete(f.customers, id)
	return nil
}

func newTestHandler(repo Repository) http.Handler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := NewHandler(logger, NewService(repo))
	r := chi.NewRouter()
	r.Route("/customers", h.MountRoutes)
	return r
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateCustomer(t *testing.T) {
	handler := newTestHandler(newFakeRepo())

	rec := doRequest(t, handler, http.MethodPost, "/customers", `{
		"name": "Ravi Kumar",
		"phone": "9876543210",
		"address": {"city": "Chennai", "state": "Tamil Nadu", "pincode": "600001"}
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var c Customer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	require.Equal(t, "Ravi Kumar", c.Name)
	require.Equal(t, "Chennai", c.Address.City)
}

func TestCreateCustomerInvalidPhone(t *testing.T) {
	handler := newTestHandler(newFakeRepo())

	rec := doRequest(t, handler, http.MethodPost, "/customers", `{"name": "Ravi Kumar", "phone": "12345"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCustomerDuplicatePhone(t *testing.T) {
	handler := newTestHandler(newFakeRepo())

	rec := doRequest(t, handler, http.MethodPost, "/customers", `{"name": "Ravi Kumar", "phone": "9876543210"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/customers", `{"name": "Someone Else", "phone": "9876543210"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var problem struct {
		Field string `json:"field"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "phone", problem.Field)
}

func TestUpdateCustomer(t *testing.T) {
	repo := newFakeRepo()
	handler := newTestHandler(repo)

	rec := doRequest(t, handler, http.MethodPost, "/customers", `{"name": "Meera Nair", "phone": "9812345678"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, handler, http.MethodPut, "/customers/1", `{"name": "Meera N"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var c Customer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	require.Equal(t, "Meera N", c.Name)
	require.Equal(t, "9812345678", c.Phone)
}

func TestGetCustomerNotFound(t *testing.T) {
	handler := newTestHandler(newFakeRepo())
	rec := doRequest(t, handler, http.MethodGet, "/customers/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCustomer(t *testing.T) {
	repo := newFakeRepo()
	handler := newTestHandler(repo)

	rec := doRequest(t, handler, http.MethodPost, "/customers", `{"name": "Arjun Singh", "phone": "9898989898"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, handler, http.MethodDelete, "/customers/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, repo.customers)
}
