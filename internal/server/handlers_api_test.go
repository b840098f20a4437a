package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gwagwa94/Votooveto/internal/app"
	"github.com/Gwagwa94/Votooveto/internal/config"
	"github.com/Gwagwa94/Votooveto/internal/domain"
	"github.com/Gwagwa94/Votooveto/internal/websocket"
)

// fakeVoteService lets each test script the app layer's behavior.
type fakeVoteService struct {
	listFn   func(ctx context.Context, viewerID uuid.UUID) (*domain.Listing, error)
	createFn func(ctx context.Context, actorID uuid.UUID, name, url string) (*domain.Restaurant, error)
	voteFn   func(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error)
	resetFn  func(ctx context.Context) (int64, error)
}

func (f *fakeVoteService) List(ctx context.Context, viewerID uuid.UUID) (*domain.Listing, error) {
	if f.listFn == nil {
		return &domain.Listing{Restaurants: []domain.Restaurant{}}, nil
	}
	return f.listFn(ctx, viewerID)
}

func (f *fakeVoteService) Create(ctx context.Context, actorID uuid.UUID, name, url string) (*domain.Restaurant, error) {
	if f.createFn == nil {
		return &domain.Restaurant{ID: uuid.New(), Name: name, URL: url}, nil
	}
	return f.createFn(ctx, actorID, name, url)
}

func (f *fakeVoteService) Vote(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error) {
	if f.voteFn == nil {
		return domain.Budget{}, nil
	}
	return f.voteFn(ctx, actorID, restaurantID, dir, delta, origin)
}

func (f *fakeVoteService) ResetVotes(ctx context.Context) (int64, error) {
	if f.resetFn == nil {
		return 0, nil
	}
	return f.resetFn(ctx)
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) Upsert(ctx context.Context, email, displayName string) (*domain.User, error) {
	if f.users == nil {
		f.users = make(map[string]*domain.User)
	}
	if u, ok := f.users[email]; ok {
		u.DisplayName = displayName
		return u, nil
	}
	u := &domain.User{ID: uuid.New(), Email: email, DisplayName: displayName}
	f.users[email] = u
	return u, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func newTestServer(t *testing.T, svc voteService) *Server {
	t.Helper()

	cfg := &config.Config{
		AppEnv:              "development",
		Port:                "0",
		SessionSecret:       "test-session-secret",
		MaxUpvotesPerUser:   4,
		MaxDownvotesPerUser: 2,
	}

	hub := websocket.NewHub()
	t.Cleanup(hub.Stop)

	return NewServer(cfg, svc, &fakeUserRepo{}, hub, nil, nil)
}

func doJSON(srv *Server, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echoHeaderContentType, "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

// login runs the login flow and returns the session cookies.
func login(t *testing.T, srv *Server, email string) []*http.Cookie {
	t.Helper()

	rec := doJSON(srv, http.MethodPost, "/auth/login", `{"email":"`+email+`","name":"Tester"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func TestLogin_ReturnsUser(t *testing.T) {
	srv := newTestServer(t, &fakeVoteService{})

	rec := doJSON(srv, http.MethodPost, "/auth/login", `{"email":"Ada@Example.com","name":"Ada"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ada@example.com", resp["email"])
	assert.Equal(t, "Ada", resp["displayName"])
	assert.NotEmpty(t, resp["id"])
}

func TestLogin_RejectsInvalidEmail(t *testing.T) {
	srv := newTestServer(t, &fakeVoteService{})

	rec := doJSON(srv, http.MethodPost, "/auth/login", `{"email":"not-an-email"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRestaurants_Anonymous(t *testing.T) {
	restaurant := domain.Restaurant{ID: uuid.New(), Name: "Pizzeria Uno", Upvotes: 3}
	svc := &fakeVoteService{
		listFn: func(ctx context.Context, viewerID uuid.UUID) (*domain.Listing, error) {
			assert.Equal(t, uuid.Nil, viewerID)
			return &domain.Listing{Restaurants: []domain.Restaurant{restaurant}}, nil
		},
	}
	srv := newTestServer(t, svc)

	rec := doJSON(srv, http.MethodGet, "/api/restaurants", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing domain.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Restaurants, 1)
	assert.Equal(t, "Pizzeria Uno", listing.Restaurants[0].Name)
	assert.Equal(t, domain.Budget{}, listing.Budget)
}

func TestListRestaurants_AuthenticatedViewerIsForwarded(t *testing.T) {
	var seenViewer uuid.UUID
	svc := &fakeVoteService{
		listFn: func(ctx context.Context, viewerID uuid.UUID) (*domain.Listing, error) {
			seenViewer = viewerID
			return &domain.Listing{}, nil
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "viewer@example.com")

	rec := doJSON(srv, http.MethodGet, "/api/restaurants", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, uuid.Nil, seenViewer)
}

func TestCreateRestaurant_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &fakeVoteService{})

	rec := doJSON(srv, http.MethodPost, "/api/restaurants", `{"name":"Pizzeria Uno"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRestaurant_Success(t *testing.T) {
	created := uuid.New()
	svc := &fakeVoteService{
		createFn: func(ctx context.Context, actorID uuid.UUID, name, url string) (*domain.Restaurant, error) {
			assert.NotEqual(t, uuid.Nil, actorID)
			return &domain.Restaurant{ID: created, Name: name, URL: url}, nil
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "chef@example.com")

	rec := doJSON(srv, http.MethodPost, "/api/restaurants", `{"name":"Pizzeria Uno","url":"https://example.com"}`, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created.String(), resp["id"])
}

func TestCreateRestaurant_BlankName(t *testing.T) {
	svc := &fakeVoteService{
		createFn: func(ctx context.Context, actorID uuid.UUID, name, url string) (*domain.Restaurant, error) {
			return nil, app.ErrInvalidName
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "chef@example.com")

	rec := doJSON(srv, http.MethodPost, "/api/restaurants", `{"name":"   "}`, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVote_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &fakeVoteService{})

	rec := doJSON(srv, http.MethodPut, "/api/restaurants/vote", `{"restaurantId":"`+uuid.NewString()+`","direction":"up"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVote_DefaultsDeltaToCast(t *testing.T) {
	var seenDelta int
	svc := &fakeVoteService{
		voteFn: func(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error) {
			seenDelta = delta
			return domain.Budget{Upvotes: 1}, nil
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "voter@example.com")

	rec := doJSON(srv, http.MethodPut, "/api/restaurants/vote", `{"restaurantId":"`+uuid.NewString()+`","direction":"up"}`, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, seenDelta)

	var resp voteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Budget.Upvotes)
}

func TestVote_ForwardsRetractAndConnectionID(t *testing.T) {
	var seenDelta int
	var seenOrigin string
	svc := &fakeVoteService{
		voteFn: func(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error) {
			seenDelta = delta
			seenOrigin = origin
			return domain.Budget{}, nil
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "voter@example.com")

	body := `{"restaurantId":"` + uuid.NewString() + `","direction":"down","delta":-1,"connectionId":"conn-7"}`
	rec := doJSON(srv, http.MethodPut, "/api/restaurants/vote", body, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, seenDelta)
	assert.Equal(t, "conn-7", seenOrigin)
}

func TestVote_ValidationFailures(t *testing.T) {
	srv := newTestServer(t, &fakeVoteService{})
	cookies := login(t, srv, "voter@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"bad restaurant id", `{"restaurantId":"nope","direction":"up"}`},
		{"bad direction", `{"restaurantId":"` + uuid.NewString() + `","direction":"sideways"}`},
		{"bad delta", `{"restaurantId":"` + uuid.NewString() + `","direction":"up","delta":2}`},
		{"zero delta", `{"restaurantId":"` + uuid.NewString() + `","direction":"up","delta":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(srv, http.MethodPut, "/api/restaurants/vote", tt.body, cookies)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestVote_QuotaExceededMapsTo403(t *testing.T) {
	svc := &fakeVoteService{
		voteFn: func(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error) {
			return domain.Budget{Upvotes: 4}, domain.ErrQuotaExceeded
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "voter@example.com")

	rec := doJSON(srv, http.MethodPut, "/api/restaurants/vote", `{"restaurantId":"`+uuid.NewString()+`","direction":"up"}`, cookies)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "vote limit reached", resp["error"])
}

func TestVote_NothingToRetractMapsTo400(t *testing.T) {
	svc := &fakeVoteService{
		voteFn: func(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error) {
			return domain.Budget{}, domain.ErrNothingToRetract
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "voter@example.com")

	body := `{"restaurantId":"` + uuid.NewString() + `","direction":"up","delta":-1}`
	rec := doJSON(srv, http.MethodPut, "/api/restaurants/vote", body, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVote_StoreFailureMapsTo502(t *testing.T) {
	svc := &fakeVoteService{
		voteFn: func(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error) {
			return domain.Budget{}, context.DeadlineExceeded
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "voter@example.com")

	rec := doJSON(srv, http.MethodPut, "/api/restaurants/vote", `{"restaurantId":"`+uuid.NewString()+`","direction":"up"}`, cookies)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCleanup_DevelopmentOnly(t *testing.T) {
	svc := &fakeVoteService{
		resetFn: func(ctx context.Context) (int64, error) { return 7, nil },
	}
	srv := newTestServer(t, svc)

	rec := doJSON(srv, http.MethodPost, "/api/cleanup", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(7), resp["deletedKeys"])

	srv.config.AppEnv = "production"
	rec = doJSON(srv, http.MethodPost, "/api/cleanup", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout_ClearsSession(t *testing.T) {
	var seenViewer uuid.UUID
	svc := &fakeVoteService{
		listFn: func(ctx context.Context, viewerID uuid.UUID) (*domain.Listing, error) {
			seenViewer = viewerID
			return &domain.Listing{}, nil
		},
	}
	srv := newTestServer(t, svc)
	cookies := login(t, srv, "leaver@example.com")

	rec := doJSON(srv, http.MethodPost, "/auth/logout", "", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	// The logout response carries the expired cookie; a request using it is
	// anonymous again.
	rec = doJSON(srv, http.MethodGet, "/api/restaurants", "", rec.Result().Cookies())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uuid.Nil, seenViewer)
}
