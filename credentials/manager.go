package credentials

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	clienterrors "github.com/jrsteele09/go-chat-client/internal/errors"
)

const (
	defaultExpiryBuffer = 300 * time.Second
	defaultAttempts     = 3
	defaultBaseDelay    = 1 * time.Second
)

// Renewer performs the network half of a credential renewal.
type Renewer interface {
	Refresh(ctx context.Context, refreshToken string) (*Pair, error)
}

// Manager owns the persisted credential pair and coordinates renewal so
// that concurrent demand collapses onto a single network operation.
type Manager struct {
	store        Store
	renewer      Renewer
	group        singleflight.Group
	nowTime      func() time.Time // nowTime function (injectable for testing)
	expiryBuffer time.Duration
	attempts     int
	baseDelay    time.Duration
	log          zerolog.Logger
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithExpiryBuffer sets how far ahead of the exp claim a token is treated
// as stale.
func WithExpiryBuffer(buffer time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiryBuffer = buffer
	}
}

// WithRenewAttempts sets the number of renewal attempts before giving up.
func WithRenewAttempts(attempts int) ManagerOption {
	return func(m *Manager) {
		m.attempts = attempts
	}
}

// WithRenewBaseDelay sets the base delay between renewal attempts. The
// delay grows linearly: baseDelay * attempt number.
func WithRenewBaseDelay(delay time.Duration) ManagerOption {
	return func(m *Manager) {
		m.baseDelay = delay
	}
}

// WithLogger sets the logger used for renewal diagnostics.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager initializes a new Manager with required dependencies.
func NewManager(store Store, renewer Renewer, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if renewer == nil {
		return nil, errors.New("[NewManager] renewer is required")
	}

	manager := &Manager{
		store:        store,
		renewer:      renewer,
		nowTime:      time.Now,
		expiryBuffer: defaultExpiryBuffer,
		attempts:     defaultAttempts,
		baseDelay:    defaultBaseDelay,
		log:          zerolog.Nop(),
	}

	for _, opt := range options {
		opt(manager)
	}

	return manager, nil
}

// GetValidToken returns an access token usable right now: the cached one
// when it is structurally valid and outside the expiry buffer, otherwise
// the result of a transparent renewal. It never returns an error; renewal
// failure or a missing refresh token degrades to ("", false).
func (m *Manager) GetValidToken(ctx context.Context) (string, bool) {
	if token, ok := m.store.Get(AccessTokenKey); ok && m.fresh(token) {
		return token, true
	}

	pair, err := m.Renew(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("transparent token renewal failed")
		return "", false
	}
	return pair.AccessToken, true
}

// Renew obtains a fresh credential pair. Callers arriving while a renewal
// is already in flight attach to that renewal and observe the identical
// resulting pair.
func (m *Manager) Renew(ctx context.Context) (Pair, error) {
	result, err, _ := m.group.Do("renew", func() (any, error) {
		return m.renew(ctx)
	})
	if err != nil {
		return Pair{}, err
	}
	return *(result.(*Pair)), nil
}

// Clear unconditionally removes both stored credentials. Idempotent.
func (m *Manager) Clear() {
	m.store.Remove(AccessTokenKey)
	m.store.Remove(RefreshTokenKey)
}

func (m *Manager) fresh(token string) bool {
	if !ValidFormat(token) {
		return false
	}
	exp, ok := ExpiresAt(token)
	if !ok {
		// No readable expiry claim: the claim is the only freshness
		// signal, so the token is treated as stale.
		return false
	}
	return m.nowTime().Add(m.expiryBuffer).Before(exp)
}

func (m *Manager) renew(ctx context.Context) (*Pair, error) {
	refreshToken, ok := m.store.Get(RefreshTokenKey)
	if !ok || strings.TrimSpace(refreshToken) == "" {
		return nil, clienterrors.ErrNoRefreshToken
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		pair, err := m.renewer.Refresh(ctx, refreshToken)
		if err == nil {
			if !ValidFormat(pair.AccessToken) {
				// Protocol violation: retrying cannot fix a server that
				// hands out malformed tokens. Nothing is persisted.
				return nil, clienterrors.ErrMalformedRenewal
			}
			m.store.Set(AccessTokenKey, pair.AccessToken)
			m.store.Set(RefreshTokenKey, pair.RefreshToken)
			return pair, nil
		}

		lastErr = err
		m.log.Debug().Err(err).Int("attempt", attempt).Msg("token renewal attempt failed")
		if attempt == m.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "[Manager.renew] canceled while waiting to retry")
		case <-time.After(m.baseDelay * time.Duration(attempt)):
		}
	}

	m.Clear()
	return nil, clienterrors.Wrapf(clienterrors.ErrRenewalExhausted, "[Manager.renew] %d attempts failed (last: %v)", m.attempts, lastErr)
}
