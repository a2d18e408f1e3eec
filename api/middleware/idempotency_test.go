package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopflow-backend/pkg/errors"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], m.ttls[key] = value.(string), ttl
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key], m.ttls[key] = value.(string), ttl
	return nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttls, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

// cancelAwareStore fails writes on a finished context the way go-redis does.
type cancelAwareStore struct {
	*memoryStore
}

func (c cancelAwareStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memoryStore.Set(ctx, key, value, ttl)
}

func (c cancelAwareStore) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memoryStore.Del(ctx, keys...)
}

func postOrder(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestIdempotentRequiresHeader(t *testing.T) {
	called := false
	h := Idempotent(newMemoryStore(), IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder(`{"items":[]}`, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder(`{}`, strings.Repeat("k", maxKeyLength+1)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotentReplaysCompletedResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotent(store, IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderNumber":"ORD-1"}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postOrder(`{"items":[1]}`, "place-1"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayedHeader))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, postOrder(`{"items":[1]}`, "place-1"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.JSONEq(t, `{"orderNumber":"ORD-1"}`, second.Body.String())
}

func TestIdempotentStoresWithRouteTTL(t *testing.T) {
	store := newMemoryStore()
	h := Idempotent(store, IdempotencyTTLStandard, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), postOrder(`{}`, "ttl"))

	require.Len(t, store.ttls, 1)
	for _, ttl := range store.ttls {
		assert.Equal(t, IdempotencyTTLStandard, ttl)
	}
}

func TestIdempotentRejectsDifferentBody(t *testing.T) {
	h := Idempotent(newMemoryStore(), IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	h.ServeHTTP(httptest.NewRecorder(), postOrder(`{"qty":1}`, "reuse"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder(`{"qty":2}`, "reuse"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotentRejectsConcurrentDuplicate(t *testing.T) {
	store := newMemoryStore()
	inner := Idempotent(store, IdempotencyTTLMoney, nil)
	var duplicate *httptest.ResponseRecorder
	var h http.Handler
	h = inner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if duplicate == nil {
			duplicate = httptest.NewRecorder()
			h.ServeHTTP(duplicate, postOrder(`{"qty":1}`, "busy"))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder(`{"qty":1}`, "busy"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, duplicate)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, duplicate))
}

func TestIdempotentReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotent(store, IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder(`{}`, "retry-me"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, store.data)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder(`{}`, "retry-me"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 1)
}

func TestIdempotentKeepsClientErrors(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotent(store, IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, postOrder(`{}`, "bad"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	}
	assert.Equal(t, 1, calls)
}

func TestIdempotentScopesKeysPerUser(t *testing.T) {
	calls := 0
	h := Idempotent(newMemoryStore(), IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []uuid.UUID{uuid.New(), uuid.New()} {
		req := postOrder(`{}`, "same-key")
		req = req.WithContext(WithIdentity(req.Context(), user, enums.RoleCustomer, ""))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotentWithoutStorePassesThrough(t *testing.T) {
	h := Idempotent(nil, IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postOrder(`{}`, ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIdempotentPersistsAfterClientDisconnect(t *testing.T) {
	store := cancelAwareStore{newMemoryStore()}
	calls := 0
	var cancel context.CancelFunc
	h := Idempotent(store, IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderNumber":"ORD-9"}`))
		if cancel != nil {
			cancel()
		}
	}))

	ctx, cancelFn := context.WithCancel(context.Background())
	cancel = cancelFn
	h.ServeHTTP(httptest.NewRecorder(), postOrder(`{"items":[1]}`, "gone").WithContext(ctx))

	key := store.IdempotencyKey(idempotencyScope(postOrder("", "")), "gone")
	var stored storedResponse
	require.NoError(t, json.Unmarshal([]byte(store.data[key]), &stored))
	assert.False(t, stored.InFlight)
	assert.Equal(t, http.StatusCreated, stored.Status)
	assert.Equal(t, IdempotencyTTLMoney, store.ttls[key])

	cancel = nil
	retry := httptest.NewRecorder()
	h.ServeHTTP(retry, postOrder(`{"items":[1]}`, "gone"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "true", retry.Header().Get(replayedHeader))
}

func TestIdempotentReleasesAfterClientDisconnect(t *testing.T) {
	store := cancelAwareStore{newMemoryStore()}
	ctx, cancel := context.WithCancel(context.Background())
	h := Idempotent(store, IdempotencyTTLMoney, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		cancel()
	}))

	h.ServeHTTP(httptest.NewRecorder(), postOrder(`{}`, "released").WithContext(ctx))
	assert.Empty(t, store.data)
}
