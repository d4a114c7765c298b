package portal

import (
	"context"
	"sync"
	"time"
)

// SessionState is an immutable snapshot of the session. User is non-nil
// exactly when Status is StatusAuthenticated.
type SessionState struct {
	Status      Status
	User        *UserInfo
	AccessToken string
	ExpiresAt   time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger overrides the logger used by the store.
func WithLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting session events.
func WithActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.activity = normalizeActivitySink(sink)
	}
}

// SessionStore owns the session lifecycle: boot restoration, login,
// logout, identity refresh, and forced deauthorization. It is the only
// writer of the gateway's credential fields and of persistent storage.
//
// Two locks are deliberate. opMu serializes the lifecycle operations so
// their multi-step sequences (persist, fetch identity, reconcile tenant)
// never interleave. stateMu guards the snapshot alone, so Deauthorize can
// run from the gateway callback while an operation is mid-flight without
// deadlocking.
type SessionStore struct {
	gateway  Gateway
	storage  SessionStorage
	logger   Logger
	clock    func() time.Time
	activity ActivitySink

	opMu sync.Mutex

	stateMu sync.RWMutex
	state   SessionState
	lastErr error
}

var _ SessionReader = (*SessionStore)(nil)

// NewSessionStore wires the store to its gateway and storage and
// registers the store as the gateway's deauthorization subscriber.
func NewSessionStore(gateway Gateway, storage SessionStorage, opts ...SessionStoreOption) (*SessionStore, error) {
	if storage == nil {
		storage = NewMemoryStorage()
	}

	s := &SessionStore{
		gateway:  gateway,
		storage:  storage,
		logger:   defLogger{},
		clock:    time.Now,
		activity: noopActivitySink{},
		state:    SessionState{Status: StatusLoading},
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := gateway.OnUnauthorized(s.Deauthorize); err != nil {
		return nil, err
	}

	return s, nil
}

// Boot restores a persisted session. A missing, expired, or unreadable
// record resolves to anonymous without touching the network; an expired
// record is also cleared from storage. A present record installs the
// stored credentials and validates them against the identity endpoint.
// Boot never fails the caller: every outcome resolves the loading state.
func (s *SessionStore) Boot(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	stored, err := s.storage.Load(ctx)
	if err != nil {
		s.logger.Warn("session restore: storage read failed: %v", err)
		s.setState(SessionState{Status: StatusAnonymous}, nil)
		return
	}

	if stored == nil {
		s.setState(SessionState{Status: StatusAnonymous}, nil)
		return
	}

	if stored.Expired(s.clock()) {
		if err := s.storage.Clear(ctx); err != nil {
			s.logger.Warn("session restore: clearing expired record failed: %v", err)
		}
		s.setState(SessionState{Status: StatusAnonymous}, nil)
		return
	}

	s.gateway.SetAccessToken(stored.AccessToken)
	s.gateway.SetOrganizationID(stored.OrganizationID)

	user, err := s.gateway.Me(ctx)
	if err != nil {
		// The gateway already dropped its credentials on a force-logout
		// response; finish the invalidation locally either way.
		s.invalidate(ctx, err)
		return
	}

	s.reconcileTenant(ctx, stored, user)

	s.setState(SessionState{
		Status:      StatusAuthenticated,
		User:        user,
		AccessToken: stored.AccessToken,
		ExpiresAt:   stored.ExpiresAt,
	}, nil)

	s.record(ctx, ActivityEvent{
		EventType:      ActivityEventBootRestored,
		UserID:         user.ID,
		OrganizationID: user.Organization.ID,
	})
}

// Login authenticates with the backend, persists the credential triple,
// and resolves the caller's identity. The status only flips to
// authenticated after the identity lookup succeeds and the tenant id has
// been reconciled; any failure after the token was installed rolls the
// credentials back so the pre-call state is materially unchanged.
func (s *SessionStore) Login(ctx context.Context, payload LoginRequest) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := payload.Validate(); err != nil {
		s.setLastError(err)
		return err
	}

	res, err := s.gateway.Login(ctx, payload)
	if err != nil {
		s.setLastError(err)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"email": payload.Email},
		})
		return err
	}

	expiresAt := s.clock().Add(time.Duration(res.ExpiresIn) * time.Second)

	s.gateway.SetAccessToken(res.AccessToken)

	session := StoredSession{
		AccessToken: res.AccessToken,
		ExpiresAt:   expiresAt,
	}
	if err := s.storage.Save(ctx, session); err != nil {
		s.invalidate(ctx, err)
		return err
	}

	user, err := s.gateway.Me(ctx)
	if err != nil {
		s.invalidate(ctx, err)
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"email": payload.Email},
		})
		return err
	}

	session.OrganizationID = user.Organization.ID
	s.gateway.SetOrganizationID(session.OrganizationID)
	if err := s.storage.Save(ctx, session); err != nil {
		s.invalidate(ctx, err)
		return err
	}

	s.setState(SessionState{
		Status:      StatusAuthenticated,
		User:        user,
		AccessToken: res.AccessToken,
		ExpiresAt:   expiresAt,
	}, nil)

	s.record(ctx, ActivityEvent{
		EventType:      ActivityEventLoginSuccess,
		UserID:         user.ID,
		OrganizationID: user.Organization.ID,
	})

	return nil
}

// Logout revokes the token server side on a best-effort basis and always
// clears local state. It never fails the caller and is safe to call when
// already anonymous.
func (s *SessionStore) Logout(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	prev := s.State()

	if prev.AccessToken != "" {
		if _, err := s.gateway.Logout(ctx); err != nil {
			s.logger.Warn("logout: server revocation failed, clearing locally: %v", err)
		}
	}

	s.gateway.ClearCredentials()
	if err := s.storage.Clear(ctx); err != nil {
		s.logger.Warn("logout: storage clear failed: %v", err)
	}
	s.setState(SessionState{Status: StatusAnonymous}, nil)

	if prev.Status == StatusAuthenticated {
		event := ActivityEvent{EventType: ActivityEventLogout}
		if prev.User != nil {
			event.UserID = prev.User.ID
			event.OrganizationID = prev.User.Organization.ID
		}
		s.record(ctx, event)
	}
}

// RefreshIdentity re-fetches the identity payload for the current
// session, replacing the permission snapshot wholesale. Without an active
// credential it fails with ErrNoSession; a failed fetch invalidates the
// whole session and re-raises the error.
func (s *SessionStore) RefreshIdentity(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	prev := s.State()
	if prev.AccessToken == "" {
		return ErrNoSession
	}

	user, err := s.gateway.Me(ctx)
	if err != nil {
		s.invalidate(ctx, err)
		s.record(ctx, ActivityEvent{
			EventType:      ActivityEventRefreshFailure,
			UserID:         userID(prev.User),
			OrganizationID: userOrgID(prev.User),
		})
		return err
	}

	stored := StoredSession{
		AccessToken:    prev.AccessToken,
		OrganizationID: userOrgID(prev.User),
		ExpiresAt:      prev.ExpiresAt,
	}
	s.reconcileTenant(ctx, &stored, user)

	s.setState(SessionState{
		Status:      StatusAuthenticated,
		User:        user,
		AccessToken: prev.AccessToken,
		ExpiresAt:   prev.ExpiresAt,
	}, nil)

	return nil
}

// Deauthorize drops the session in response to an unauthorized or
// tenant-invalid backend response. It is registered as the gateway's
// subscriber and may fire while a lifecycle operation is in flight, so it
// takes no operation lock.
func (s *SessionStore) Deauthorize() {
	ctx := context.Background()

	s.gateway.ClearCredentials()
	if err := s.storage.Clear(ctx); err != nil {
		s.logger.Warn("deauthorize: storage clear failed: %v", err)
	}

	s.stateMu.Lock()
	prev := s.state
	s.state = SessionState{Status: StatusAnonymous}
	s.stateMu.Unlock()

	if prev.Status != StatusAnonymous {
		s.logger.Info("session deauthorized")
		s.record(ctx, ActivityEvent{
			EventType:      ActivityEventDeauthorized,
			UserID:         userID(prev.User),
			OrganizationID: userOrgID(prev.User),
		})
	}
}

// HasPermission reports whether the current session holds the given
// permission. Anything but an authenticated session with the exact
// permission in its snapshot answers false.
func (s *SessionStore) HasPermission(permission string) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if s.state.Status != StatusAuthenticated {
		return false
	}
	return s.state.User.HasPermission(permission)
}

// HasRole reports whether the current session holds the given role,
// fail-closed like HasPermission.
func (s *SessionStore) HasRole(role string) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if s.state.Status != StatusAuthenticated {
		return false
	}
	return s.state.User.HasRole(role)
}

// State returns a snapshot of the current session.
func (s *SessionStore) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Status returns the current tri-state status.
func (s *SessionStore) Status() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.Status
}

// CurrentUser returns the identity payload, nil unless authenticated.
func (s *SessionStore) CurrentUser() *UserInfo {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.User
}

// LastError returns the error recorded by the most recent failed
// operation, cleared on the next successful one.
func (s *SessionStore) LastError() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastErr
}

// reconcileTenant enforces the identity payload's organization id as the
// single source of truth, updating the gateway header and the persisted
// record when they drifted.
func (s *SessionStore) reconcileTenant(ctx context.Context, stored *StoredSession, user *UserInfo) {
	orgID := user.Organization.ID
	if stored.OrganizationID == orgID {
		s.gateway.SetOrganizationID(orgID)
		return
	}

	stored.OrganizationID = orgID
	s.gateway.SetOrganizationID(orgID)
	if err := s.storage.Save(ctx, *stored); err != nil {
		s.logger.Warn("tenant reconcile: storage save failed: %v", err)
	}
}

// invalidate clears credentials and storage and resolves to anonymous,
// recording err as the last error.
func (s *SessionStore) invalidate(ctx context.Context, err error) {
	s.gateway.ClearCredentials()
	if clearErr := s.storage.Clear(ctx); clearErr != nil {
		s.logger.Warn("invalidate: storage clear failed: %v", clearErr)
	}
	s.setState(SessionState{Status: StatusAnonymous}, err)
}

func (s *SessionStore) setState(next SessionState, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if !canTransition(s.state.Status, next.Status) {
		s.logger.Warn("blocked session transition %s -> %s", s.state.Status, next.Status)
		s.lastErr = ErrInvalidTransition.Clone().WithMetadata(map[string]any{
			"from": s.state.Status,
			"to":   next.Status,
		})
		return
	}
	s.state = next
	s.lastErr = err
}

func (s *SessionStore) setLastError(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
}

func (s *SessionStore) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink: %v", err)
	}
}

func userID(u *UserInfo) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func userOrgID(u *UserInfo) string {
	if u == nil {
		return ""
	}
	return u.Organization.ID
}
