package portal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	portal "github.com/goliatone/go-portal-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testUser() *portal.UserInfo {
	return &portal.UserInfo{
		ID:       "usr-1",
		Email:    "ada@example.com",
		FullName: "Ada Lovelace",
		IsActive: true,
		Organization: portal.Organization{
			ID:       "org-9",
			Name:     "Analytical Engines Ltd",
			IsActive: true,
		},
		Roles:       []string{"member"},
		Permissions: []string{"reports:view"},
	}
}

func newTestStore(t *testing.T, gateway *MockGateway, storage portal.SessionStorage, opts ...portal.SessionStoreOption) *portal.SessionStore {
	t.Helper()

	opts = append([]portal.SessionStoreOption{
		portal.WithClock(func() time.Time { return testNow }),
	}, opts...)

	store, err := portal.NewSessionStore(gateway, storage, opts...)
	require.NoError(t, err)
	return store
}

func TestSessionStoreStartsLoading(t *testing.T) {
	gateway := &MockGateway{}
	store := newTestStore(t, gateway, portal.NewMemoryStorage())

	assert.Equal(t, portal.StatusLoading, store.Status())
	assert.Nil(t, store.CurrentUser())
}

func TestBootWithEmptyStorageResolvesAnonymous(t *testing.T) {
	gateway := &MockGateway{}
	store := newTestStore(t, gateway, portal.NewMemoryStorage())

	store.Boot(context.Background())

	assert.Equal(t, portal.StatusAnonymous, store.Status())
	gateway.AssertNotCalled(t, "Me", mock.Anything)
}

func TestBootRestoresPersistedSession(t *testing.T) {
	ctx := context.Background()

	storage := portal.NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, portal.StoredSession{
		AccessToken:    "tok-persisted",
		OrganizationID: "org-9",
		ExpiresAt:      testNow.Add(time.Hour),
	}))

	gateway := &MockGateway{}
	gateway.On("SetAccessToken", "tok-persisted").Return()
	gateway.On("SetOrganizationID", "org-9").Return()
	gateway.On("Me", mock.Anything).Return(testUser(), nil)

	store := newTestStore(t, gateway, storage)
	store.Boot(ctx)

	assert.Equal(t, portal.StatusAuthenticated, store.Status())
	require.NotNil(t, store.CurrentUser())
	assert.Equal(t, "ada@example.com", store.CurrentUser().Email)
	gateway.AssertExpectations(t)
}

func TestBootExpiredSessionSkipsNetwork(t *testing.T) {
	ctx := context.Background()

	storage := portal.NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, portal.StoredSession{
		AccessToken:    "tok-stale",
		OrganizationID: "org-9",
		ExpiresAt:      testNow.Add(-time.Minute),
	}))

	gateway := &MockGateway{}
	store := newTestStore(t, gateway, storage)
	store.Boot(ctx)

	assert.Equal(t, portal.StatusAnonymous, store.Status())
	gateway.AssertNotCalled(t, "Me", mock.Anything)
	gateway.AssertNotCalled(t, "SetAccessToken", mock.Anything)

	stored, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestBootReconcilesTenantDrift(t *testing.T) {
	ctx := context.Background()

	storage := portal.NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, portal.StoredSession{
		AccessToken:    "tok-persisted",
		OrganizationID: "org-old",
		ExpiresAt:      testNow.Add(time.Hour),
	}))

	gateway := &MockGateway{}
	gateway.On("SetAccessToken", "tok-persisted").Return()
	gateway.On("SetOrganizationID", "org-old").Return()
	gateway.On("Me", mock.Anything).Return(testUser(), nil)
	gateway.On("SetOrganizationID", "org-9").Return()

	store := newTestStore(t, gateway, storage)
	store.Boot(ctx)

	assert.Equal(t, portal.StatusAuthenticated, store.Status())

	stored, err := storage.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "org-9", stored.OrganizationID)
}

func TestBootInvalidTokenResolvesAnonymous(t *testing.T) {
	ctx := context.Background()

	storage := portal.NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, portal.StoredSession{
		AccessToken: "tok-revoked",
		ExpiresAt:   testNow.Add(time.Hour),
	}))

	gateway := &MockGateway{}
	gateway.On("SetAccessToken", "tok-revoked").Return()
	gateway.On("SetOrganizationID", "").Return()
	gateway.On("Me", mock.Anything).Return(nil, &portal.APIError{
		Code:    portal.CodeAuthRequired,
		Message: "authentication required",
	})
	gateway.On("ClearCredentials").Return()

	store := newTestStore(t, gateway, storage)
	store.Boot(ctx)

	assert.Equal(t, portal.StatusAnonymous, store.Status())

	stored, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLoginPersistsTripleAndAuthenticates(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	payload := portal.LoginRequest{Email: "ada@example.com", Password: "sup3r-secret"}

	gateway := &MockGateway{}
	gateway.On("Login", mock.Anything, payload).Return(&portal.LoginResponse{
		AccessToken: "T1",
		TokenType:   "bearer",
		ExpiresIn:   3600,
	}, nil)
	gateway.On("SetAccessToken", "T1").Return()
	gateway.On("Me", mock.Anything).Return(testUser(), nil)
	gateway.On("SetOrganizationID", "org-9").Return()

	var events []portal.ActivityEvent
	sink := portal.ActivitySinkFunc(func(_ context.Context, event portal.ActivityEvent) error {
		events = append(events, event)
		return nil
	})

	store := newTestStore(t, gateway, storage, portal.WithActivitySink(sink))
	store.Boot(ctx)

	require.NoError(t, store.Login(ctx, payload))

	assert.Equal(t, portal.StatusAuthenticated, store.Status())
	assert.Nil(t, store.LastError())

	stored, err := storage.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "T1", stored.AccessToken)
	assert.Equal(t, "org-9", stored.OrganizationID)
	assert.True(t, stored.ExpiresAt.Equal(testNow.Add(time.Hour)))

	require.Len(t, events, 1)
	assert.Equal(t, portal.ActivityEventLoginSuccess, events[0].EventType)
	assert.Equal(t, "usr-1", events[0].UserID)

	gateway.AssertExpectations(t)
}

func TestLoginSurvivesReload(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	payload := portal.LoginRequest{Email: "ada@example.com", Password: "sup3r-secret"}

	gateway := &MockGateway{}
	gateway.On("Login", mock.Anything, payload).Return(&portal.LoginResponse{
		AccessToken: "T1",
		TokenType:   "bearer",
		ExpiresIn:   3600,
	}, nil)
	gateway.On("SetAccessToken", "T1").Return()
	gateway.On("Me", mock.Anything).Return(testUser(), nil)
	gateway.On("SetOrganizationID", "org-9").Return()

	store := newTestStore(t, gateway, storage)
	store.Boot(ctx)
	require.NoError(t, store.Login(ctx, payload))
	loggedIn := store.CurrentUser()
	require.NotNil(t, loggedIn)

	// simulated process restart: a fresh store over the same storage
	reloadGateway := &MockGateway{}
	reloadGateway.On("SetAccessToken", "T1").Return()
	reloadGateway.On("SetOrganizationID", "org-9").Return()
	reloadGateway.On("Me", mock.Anything).Return(testUser(), nil)

	reloaded := newTestStore(t, reloadGateway, storage)
	reloaded.Boot(ctx)

	require.Equal(t, portal.StatusAuthenticated, reloaded.Status())

	// the restored identity matches a direct lookup
	direct, err := reloadGateway.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, direct, reloaded.CurrentUser())
	assert.Equal(t, loggedIn, reloaded.CurrentUser())
	assert.True(t, reloaded.HasPermission("reports:view"))
}

func TestLoginRejectsInvalidPayloadLocally(t *testing.T) {
	ctx := context.Background()
	gateway := &MockGateway{}

	store := newTestStore(t, gateway, portal.NewMemoryStorage())
	store.Boot(ctx)

	err := store.Login(ctx, portal.LoginRequest{Email: "nope", Password: "x"})
	require.Error(t, err)

	assert.Equal(t, portal.StatusAnonymous, store.Status())
	gateway.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	payload := portal.LoginRequest{Email: "ada@example.com", Password: "wrong-password"}
	authErr := &portal.APIError{Code: portal.CodeAuthInvalid, Message: "invalid credentials"}

	gateway := &MockGateway{}
	gateway.On("Login", mock.Anything, payload).Return(nil, authErr)

	store := newTestStore(t, gateway, storage)
	store.Boot(ctx)

	err := store.Login(ctx, payload)
	require.Error(t, err)
	assert.Equal(t, authErr, store.LastError())
	assert.Equal(t, portal.StatusAnonymous, store.Status())

	stored, loadErr := storage.Load(ctx)
	require.NoError(t, loadErr)
	assert.Nil(t, stored)

	gateway.AssertNotCalled(t, "SetAccessToken", mock.Anything)
}

func TestLoginIdentityFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	payload := portal.LoginRequest{Email: "ada@example.com", Password: "sup3r-secret"}

	gateway := &MockGateway{}
	gateway.On("Login", mock.Anything, payload).Return(&portal.LoginResponse{
		AccessToken: "T1",
		ExpiresIn:   3600,
	}, nil)
	gateway.On("SetAccessToken", "T1").Return()
	gateway.On("Me", mock.Anything).Return(nil, &portal.APIError{
		Code:    portal.CodeInternalError,
		Message: "HTTP 500",
	})
	gateway.On("ClearCredentials").Return()

	store := newTestStore(t, gateway, storage)
	store.Boot(ctx)

	err := store.Login(ctx, payload)
	require.Error(t, err)

	assert.Equal(t, portal.StatusAnonymous, store.Status())

	// the provisionally persisted token must be gone
	stored, loadErr := storage.Load(ctx)
	require.NoError(t, loadErr)
	assert.Nil(t, stored)

	gateway.AssertCalled(t, "ClearCredentials")
}

func TestLogoutClearsEverythingAndNeverFails(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	gateway := authenticatedGateway()
	gateway.On("Logout", mock.Anything).Return(nil, &portal.APIError{
		Code:    portal.CodeNetworkError,
		Message: "unable to reach the server",
	}).Once()
	gateway.On("ClearCredentials").Return()

	store := newTestStore(t, gateway, storage)
	bootAuthenticated(t, store, storage)

	store.Logout(ctx)

	assert.Equal(t, portal.StatusAnonymous, store.Status())
	assert.Nil(t, store.CurrentUser())

	stored, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	gateway := authenticatedGateway()
	gateway.On("Logout", mock.Anything).Return(&portal.MessageResponse{Message: "ok"}, nil).Once()
	gateway.On("ClearCredentials").Return()

	store := newTestStore(t, gateway, storage)
	bootAuthenticated(t, store, storage)

	store.Logout(ctx)
	store.Logout(ctx)

	assert.Equal(t, portal.StatusAnonymous, store.Status())
	gateway.AssertNumberOfCalls(t, "Logout", 1)
}

func TestDeauthorizeDropsSession(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	gateway := authenticatedGateway()
	gateway.On("ClearCredentials").Return()

	store := newTestStore(t, gateway, storage)
	bootAuthenticated(t, store, storage)

	gateway.FireUnauthorized()

	assert.Equal(t, portal.StatusAnonymous, store.Status())
	assert.Nil(t, store.CurrentUser())

	stored, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRefreshIdentityRequiresSession(t *testing.T) {
	gateway := &MockGateway{}
	store := newTestStore(t, gateway, portal.NewMemoryStorage())
	store.Boot(context.Background())

	err := store.RefreshIdentity(context.Background())
	assert.ErrorIs(t, err, portal.ErrNoSession)
}

func TestRefreshIdentityReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	gateway := authenticatedGateway()

	store := newTestStore(t, gateway, storage)
	bootAuthenticated(t, store, storage)

	refreshed := testUser()
	refreshed.Permissions = []string{"reports:view", "admin:access"}

	gateway.ExpectedCalls = nil
	gateway.On("Me", mock.Anything).Return(refreshed, nil)
	gateway.On("SetOrganizationID", "org-9").Return()

	require.NoError(t, store.RefreshIdentity(ctx))

	assert.True(t, store.HasPermission("admin:access"))
}

func TestRefreshIdentityFailureInvalidates(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	gateway := authenticatedGateway()

	store := newTestStore(t, gateway, storage)
	bootAuthenticated(t, store, storage)

	gateway.ExpectedCalls = nil
	gateway.On("Me", mock.Anything).Return(nil, &portal.APIError{
		Code:    portal.CodeAuthRequired,
		Message: "authentication required",
	})
	gateway.On("ClearCredentials").Return()

	err := store.RefreshIdentity(ctx)
	require.Error(t, err)

	assert.Equal(t, portal.StatusAnonymous, store.Status())

	stored, loadErr := storage.Load(ctx)
	require.NoError(t, loadErr)
	assert.Nil(t, stored)
}

func TestHasPermissionFailsClosed(t *testing.T) {
	gateway := &MockGateway{}
	store := newTestStore(t, gateway, portal.NewMemoryStorage())

	// loading: deny
	assert.False(t, store.HasPermission("reports:view"))

	store.Boot(context.Background())

	// anonymous: deny
	assert.False(t, store.HasPermission("reports:view"))
}

func TestHasPermissionExactMatch(t *testing.T) {
	storage := portal.NewMemoryStorage()
	gateway := authenticatedGateway()

	store := newTestStore(t, gateway, storage)
	bootAuthenticated(t, store, storage)

	assert.True(t, store.HasPermission("reports:view"))
	assert.False(t, store.HasPermission("reports"))
	assert.False(t, store.HasPermission("admin:access"))
}

func TestSessionStore_Race(t *testing.T) {
	ctx := context.Background()
	storage := portal.NewMemoryStorage()

	gateway := authenticatedGateway()
	gateway.On("ClearCredentials").Return()
	gateway.On("Logout", mock.Anything).Return(&portal.MessageResponse{}, nil)

	store := newTestStore(t, gateway, storage)
	bootAuthenticated(t, store, storage)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				store.HasPermission("reports:view")
				store.Status()
				store.State()
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		gateway.FireUnauthorized()
	}()
	go func() {
		defer wg.Done()
		store.Logout(ctx)
	}()

	wg.Wait()

	assert.Equal(t, portal.StatusAnonymous, store.Status())
}

// authenticatedGateway mocks the calls bootAuthenticated performs.
func authenticatedGateway() *MockGateway {
	gateway := &MockGateway{}
	gateway.On("SetAccessToken", "tok-persisted").Return()
	gateway.On("SetOrganizationID", "org-9").Return()
	gateway.On("Me", mock.Anything).Return(testUser(), nil)
	return gateway
}

func bootAuthenticated(t *testing.T, store *portal.SessionStore, storage portal.SessionStorage) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, storage.Save(ctx, portal.StoredSession{
		AccessToken:    "tok-persisted",
		OrganizationID: "org-9",
		ExpiresAt:      testNow.Add(time.Hour),
	}))

	store.Boot(ctx)
	require.Equal(t, portal.StatusAuthenticated, store.Status())
}
