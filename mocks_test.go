package portal_test

import (
	"context"

	portal "github.com/goliatone/go-portal-session"
	"github.com/stretchr/testify/mock"
)

// MockGateway implements portal.Gateway
type MockGateway struct {
	mock.Mock
	unauthorized func()
}

func (m *MockGateway) Login(ctx context.Context, payload portal.LoginRequest) (*portal.LoginResponse, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portal.LoginResponse), args.Error(1)
}

func (m *MockGateway) Me(ctx context.Context) (*portal.UserInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portal.UserInfo), args.Error(1)
}

func (m *MockGateway) Logout(ctx context.Context) (*portal.MessageResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portal.MessageResponse), args.Error(1)
}

func (m *MockGateway) SetAccessToken(token string) {
	m.Called(token)
}

func (m *MockGateway) SetOrganizationID(id string) {
	m.Called(id)
}

func (m *MockGateway) ClearCredentials() {
	m.Called()
}

func (m *MockGateway) OnUnauthorized(fn func()) error {
	if m.unauthorized != nil {
		return portal.ErrSubscriberRegistered
	}
	m.unauthorized = fn
	return nil
}

// FireUnauthorized simulates the gateway receiving a 401.
func (m *MockGateway) FireUnauthorized() {
	if m.unauthorized != nil {
		m.unauthorized()
	}
}

// MockStorage implements portal.SessionStorage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Load(ctx context.Context) (*portal.StoredSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portal.StoredSession), args.Error(1)
}

func (m *MockStorage) Save(ctx context.Context, session portal.StoredSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockStorage) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockActivitySink records events for assertions.
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event portal.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
