package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/liveshop/liveshop/internal/config"
	"github.com/liveshop/liveshop/internal/domain"
	"github.com/liveshop/liveshop/internal/engine"
	"github.com/liveshop/liveshop/internal/ws"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockSessionRepo struct {
	getByIDFn          func(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	listFn             func(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error)
	findLiveFn         func(ctx context.Context) (*domain.Session, error)
	createFn           func(ctx context.Context, title, description string, productIDs []uuid.UUID, startTime time.Time) (*domain.Session, error)
	deleteFn           func(ctx context.Context, id uuid.UUID) error
	setStatusFn        func(ctx context.Context, id uuid.UUID, status domain.SessionStatus) (*domain.Session, error)
	recordViewerPeakFn func(ctx context.Context, id uuid.UUID, current int) (domain.Analytics, error)
	recordReactionFn   func(ctx context.Context, id uuid.UUID, kind domain.ReactionKind) (domain.Analytics, error)
	recordQuestionFn   func(ctx context.Context, id uuid.UUID) (domain.Analytics, error)
	replaceAnalyticsFn func(ctx context.Context, id uuid.UUID, analytics domain.Analytics) (*domain.Session, error)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) List(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockSessionRepo) FindLive(ctx context.Context) (*domain.Session, error) {
	if m.findLiveFn != nil {
		return m.findLiveFn(ctx)
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) Create(ctx context.Context, title, description string, productIDs []uuid.UUID, startTime time.Time) (*domain.Session, error) {
	if m.createFn != nil {
		return m.createFn(ctx, title, description, productIDs, startTime)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return errors.New("not implemented")
}

func (m *mockSessionRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) (*domain.Session, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, status)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSessionRepo) RecordViewerPeak(ctx context.Context, id uuid.UUID, current int) (domain.Analytics, error) {
	if m.recordViewerPeakFn != nil {
		return m.recordViewerPeakFn(ctx, id, current)
	}
	return domain.Analytics{}, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) RecordReaction(ctx context.Context, id uuid.UUID, kind domain.ReactionKind) (domain.Analytics, error) {
	if m.recordReactionFn != nil {
		return m.recordReactionFn(ctx, id, kind)
	}
	return domain.Analytics{}, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) RecordQuestion(ctx context.Context, id uuid.UUID) (domain.Analytics, error) {
	if m.recordQuestionFn != nil {
		return m.recordQuestionFn(ctx, id)
	}
	return domain.Analytics{}, domain.ErrSessionNotFound
}

func (m *mockSessionRepo) ReplaceAnalytics(ctx context.Context, id uuid.UUID, analytics domain.Analytics) (*domain.Session, error) {
	if m.replaceAnalyticsFn != nil {
		return m.replaceAnalyticsFn(ctx, id, analytics)
	}
	return nil, errors.New("not implemented")
}

type mockProductRepo struct {
	getByIDFn   func(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	listFn      func(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	listByIDsFn func(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error)
	createFn    func(ctx context.Context, p domain.Product) (*domain.Product, error)
	updateFn    func(ctx context.Context, id uuid.UUID, p domain.Product) (*domain.Product, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrProductNotFound
}

func (m *mockProductRepo) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockProductRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	if m.listByIDsFn != nil {
		return m.listByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockProductRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProductRepo) Update(ctx context.Context, id uuid.UUID, p domain.Product) (*domain.Product, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, p)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return errors.New("not implemented")
}

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

type stubPostgres struct{ err error }

func (s *stubPostgres) Ping(context.Context) error { return s.err }

type stubRedis struct{ err error }

func (s *stubRedis) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
	}
	return cmd
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     100,
		ConnectionRatePerSecond: 1000,
		ConnectionBurst:         1000,
		MaxClientsPerSession:    100,
	}
}

func newTestServer(t *testing.T, sessions domain.SessionRepository, products domain.ProductRepository, opts ...func(*Server)) *Server {
	t.Helper()

	clock := clockwork.NewRealClock()
	hub := ws.NewHub(clock)
	eng := engine.New(sessions, hub, allowAllLimiter{}, clock, 100)
	t.Cleanup(func() {
		eng.Stop()
		hub.Stop()
	})

	srv := NewServer(testConfig(), sessions, products, eng, hub, &stubPostgres{}, &stubRedis{})
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

func doRequest(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func makeSession(productIDs ...uuid.UUID) domain.Session {
	return domain.Session{
		ID:          uuid.New(),
		Title:       "Sneaker Drop",
		Description: "Limited edition launch",
		ProductIDs:  productIDs,
		Status:      domain.StatusScheduled,
		StartTime:   time.Now().UTC(),
		Analytics:   domain.NewAnalytics(),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

// --- Session handler tests ---

func TestListSessions(t *testing.T) {
	productID := uuid.New()
	sessions := &mockSessionRepo{
		listFn: func(_ context.Context, _ domain.SessionFilter) ([]domain.Session, error) {
			return []domain.Session{makeSession(productID), makeSession()}, nil
		},
	}
	products := &mockProductRepo{
		listByIDsFn: func(_ context.Context, ids []uuid.UUID) ([]domain.Product, error) {
			out := make([]domain.Product, len(ids))
			for i, id := range ids {
				out[i] = domain.Product{ID: id, Name: "Sneaker"}
			}
			return out, nil
		},
	}
	srv := newTestServer(t, sessions, products)

	rec := doRequest(srv, http.MethodGet, "/api/sessions", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])

	data := body["data"].([]any)
	first := data[0].(map[string]any)
	assert.Len(t, first["products"], 1)
}

func TestListSessionsStatusFilter(t *testing.T) {
	var gotFilter domain.SessionFilter
	sessions := &mockSessionRepo{
		listFn: func(_ context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	srv := newTestServer(t, sessions, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/api/sessions?status=live", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotFilter.Status)
	assert.Equal(t, domain.StatusLive, *gotFilter.Status)
}

func TestListSessionsInvalidStatusFilter(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/api/sessions?status=paused", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid status value", body["message"])
}

func TestGetSessionNotFound(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/api/sessions/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Session not found", body["message"])
}

func TestGetSessionInvalidID(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/api/sessions/not-a-uuid", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLiveSessionNone(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/api/sessions/live", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Nil(t, body["data"])
}

func TestCreateSessionValidation(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	tests := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{
			name:    "missing title",
			body:    map[string]any{"description": "d"},
			message: "Session title is required",
		},
		{
			name:    "missing description",
			body:    map[string]any{"title": "t"},
			message: "Session description is required",
		},
		{
			name:    "title too long",
			body:    map[string]any{"title": string(make([]byte, 201)), "description": "d"},
			message: "Title cannot exceed 200 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/api/sessions", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestCreateSession(t *testing.T) {
	created := makeSession()
	sessions := &mockSessionRepo{
		createFn: func(_ context.Context, title, description string, _ []uuid.UUID, _ time.Time) (*domain.Session, error) {
			created.Title = title
			created.Description = description
			return &created, nil
		},
	}
	srv := newTestServer(t, sessions, &mockProductRepo{})

	rec := doRequest(srv, http.MethodPost, "/api/sessions", map[string]any{
		"title":       "Flash Sale Friday",
		"description": "Half price on everything",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Session created successfully", body["message"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "Flash Sale Friday", data["title"])
}

func TestUpdateSessionStatus(t *testing.T) {
	sess := makeSession()
	var gotStatus domain.SessionStatus
	sessions := &mockSessionRepo{
		setStatusFn: func(_ context.Context, _ uuid.UUID, status domain.SessionStatus) (*domain.Session, error) {
			gotStatus = status
			sess.Status = status
			return &sess, nil
		},
	}
	srv := newTestServer(t, sessions, &mockProductRepo{})

	rec := doRequest(srv, http.MethodPatch, "/api/sessions/"+sess.ID.String()+"/status", map[string]any{"status": "live"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusLive, gotStatus)
	body := decodeBody(t, rec)
	assert.Equal(t, "Session live successfully", body["message"])
}

func TestUpdateSessionStatusInvalid(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodPatch, "/api/sessions/"+uuid.NewString()+"/status", map[string]any{"status": "paused"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid status value", body["message"])
}

func TestUpdateSessionAnalytics(t *testing.T) {
	sess := makeSession()
	var gotAnalytics domain.Analytics
	sessions := &mockSessionRepo{
		replaceAnalyticsFn: func(_ context.Context, _ uuid.UUID, analytics domain.Analytics) (*domain.Session, error) {
			gotAnalytics = analytics
			sess.Analytics = analytics
			return &sess, nil
		},
	}
	srv := newTestServer(t, sessions, &mockProductRepo{})

	rec := doRequest(srv, http.MethodPatch, "/api/sessions/"+sess.ID.String()+"/analytics", map[string]any{
		"totalViewers": 10,
		"peakViewers":  10,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, gotAnalytics.TotalViewers)
	assert.Equal(t, 10, gotAnalytics.PeakViewers)
}

func TestDeleteSession(t *testing.T) {
	sessions := &mockSessionRepo{
		deleteFn: func(context.Context, uuid.UUID) error { return nil },
	}
	srv := newTestServer(t, sessions, &mockProductRepo{})

	rec := doRequest(srv, http.MethodDelete, "/api/sessions/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Session deleted successfully", body["message"])
}

func TestDeleteSessionNotFound(t *testing.T) {
	sessions := &mockSessionRepo{
		deleteFn: func(context.Context, uuid.UUID) error { return domain.ErrSessionNotFound },
	}
	srv := newTestServer(t, sessions, &mockProductRepo{})

	rec := doRequest(srv, http.MethodDelete, "/api/sessions/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Product handler tests ---

func TestCreateProductValidation(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	tests := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{
			name:    "missing name",
			body:    map[string]any{"description": "d", "price": 9.99},
			message: "Product name is required",
		},
		{
			name:    "missing price",
			body:    map[string]any{"name": "n", "description": "d"},
			message: "Product price is required",
		},
		{
			name:    "negative price",
			body:    map[string]any{"name": "n", "description": "d", "price": -1},
			message: "Price cannot be negative",
		},
		{
			name:    "negative stock",
			body:    map[string]any{"name": "n", "description": "d", "price": 1, "stock": -5},
			message: "Stock cannot be negative",
		},
		{
			name:    "bad category",
			body:    map[string]any{"name": "n", "description": "d", "price": 1, "category": "Gadgets"},
			message: "Invalid product category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/api/products", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestCreateProductDefaults(t *testing.T) {
	var gotProduct domain.Product
	products := &mockProductRepo{
		createFn: func(_ context.Context, p domain.Product) (*domain.Product, error) {
			gotProduct = p
			p.ID = uuid.New()
			return &p, nil
		},
	}
	srv := newTestServer(t, &mockSessionRepo{}, products)

	rec := doRequest(srv, http.MethodPost, "/api/products", map[string]any{
		"name":        "Wireless Earbuds",
		"description": "Noise cancelling",
		"price":       79.99,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, gotProduct.IsActive)
	assert.Equal(t, 0, gotProduct.Stock)
}

func TestListProductsFilter(t *testing.T) {
	var gotFilter domain.ProductFilter
	products := &mockProductRepo{
		listFn: func(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
			gotFilter = filter
			return []domain.Product{}, nil
		},
	}
	srv := newTestServer(t, &mockSessionRepo{}, products)

	rec := doRequest(srv, http.MethodGet, "/api/products?isActive=true&category=Electronics&search=buds", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotFilter.IsActive)
	assert.True(t, *gotFilter.IsActive)
	assert.Equal(t, "Electronics", gotFilter.Category)
	assert.Equal(t, "buds", gotFilter.Search)
}

func TestGetProductNotFound(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/api/products/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Product not found", body["message"])
}

func TestUpdateProduct(t *testing.T) {
	products := &mockProductRepo{
		updateFn: func(_ context.Context, id uuid.UUID, p domain.Product) (*domain.Product, error) {
			p.ID = id
			return &p, nil
		},
	}
	srv := newTestServer(t, &mockSessionRepo{}, products)

	rec := doRequest(srv, http.MethodPut, "/api/products/"+uuid.NewString(), map[string]any{
		"name":        "Updated Earbuds",
		"description": "Now with case",
		"price":       89.99,
		"isActive":    false,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Product updated successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["isActive"])
}

func TestDeleteProductNotFound(t *testing.T) {
	products := &mockProductRepo{
		deleteFn: func(context.Context, uuid.UUID) error { return domain.ErrProductNotFound },
	}
	srv := newTestServer(t, &mockSessionRepo{}, products)

	rec := doRequest(srv, http.MethodDelete, "/api/products/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Observability endpoint tests ---

func TestLiveness(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/health/live", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestReadiness(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/health/ready", nil)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessPostgresDown(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{}, func(s *Server) {
		s.db = &stubPostgres{err: errors.New("connection refused")}
	})

	rec := doRequest(srv, http.MethodGet, "/health/ready", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "postgres", body["failed_check"])
}

func TestReadinessRedisDown(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{}, func(s *Server) {
		s.rdb = &stubRedis{err: errors.New("connection refused")}
	})

	rec := doRequest(srv, http.MethodGet, "/health/ready", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "redis", body["failed_check"])
}

func TestVersion(t *testing.T) {
	srv := newTestServer(t, &mockSessionRepo{}, &mockProductRepo{})

	rec := doRequest(srv, http.MethodGet, "/version", nil)

	require.Equal(t, http.StatusOK, rec.Code)
}
