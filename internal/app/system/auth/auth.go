// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
	userName  = "user_name"
	userEmail = "user_email"
	userRole  = "user_role"
)

// ErrInvalidToken is returned by ParseToken for any unusable bearer token.
var ErrInvalidToken = errors.New("invalid or expired token")

/*─────────────────────────────────────────────────────────────────────────────*
| Current user                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is the authenticated caller injected into r.Context().
type SessionUser struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// UserFetcher loads fresh user data for an ID. It returns nil when the user
// no longer exists or is deactivated, which signs the caller out.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into the request context, bypassing cookies and
// tokens. Tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager authenticates requests from a gorilla session cookie or an
// "Authorization: Bearer" JWT, whichever is present. Bearer wins.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	log     *zap.Logger

	tokenKey []byte
	tokenTTL time.Duration
}

// NewSessionManager builds the cookie store. secure marks cookies Secure
// with SameSite=None; otherwise SameSite=Lax for http://localhost.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "questhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// EnableTokens turns on bearer-token issuing and parsing.
func (sm *SessionManager) EnableTokens(secret string, ttl time.Duration) error {
	if secret == "" {
		return errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	sm.tokenKey = []byte(secret)
	sm.tokenTTL = ttl
	return nil
}

// SetUserFetcher makes LoadUser re-read the user on every request.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// session returns the named session. A cookie that no longer decodes (for
// example after a key rotation) yields a fresh session rather than an error.
func (sm *SessionManager) session(r *http.Request) *sessions.Session {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			sm.log.Warn("session cookie invalid, using fresh session", zap.Error(err))
		} else {
			sm.log.Error("session store error, using fresh session", zap.Error(err))
		}
	}
	return sess
}

// Login writes the session cookie for u.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess := sm.session(r)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userName] = u.Name
	sess.Values[userEmail] = u.Email
	sess.Values[userRole] = u.Role
	return sess.Save(r, w)
}

// Logout expires the session cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := sm.session(r)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for u and returns it with its expiry.
func (sm *SessionManager) IssueToken(u SessionUser) (string, time.Time, error) {
	if sm.tokenKey == nil {
		return "", time.Time{}, errors.New("tokens not enabled")
	}
	now := time.Now().UTC()
	exp := now.Add(sm.tokenTTL)
	claims := tokenClaims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "questhub",
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.tokenKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// ParseToken validates a bearer token and returns the user ID and role it
// was issued for.
func (sm *SessionManager) ParseToken(s string) (userID, role string, err error) {
	if sm.tokenKey == nil {
		return "", "", ErrInvalidToken
	}
	var claims tokenClaims
	_, err = jwt.ParseWithClaims(s, &claims, func(*jwt.Token) (interface{}, error) {
		return sm.tokenKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("questhub"))
	if err != nil || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Role, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadUser injects the caller into context when a valid bearer token or
// session cookie is present. With a UserFetcher set, the user is re-read so
// deactivation takes effect on the next request.
func (sm *SessionManager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := sm.fromBearer(r)
		if u == nil {
			u = sm.fromSession(r)
		}
		if u != nil && sm.fetcher != nil {
			u = sm.fetcher.FetchUser(r.Context(), u.ID)
		}
		if u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) fromBearer(r *http.Request) *SessionUser {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return nil
	}
	id, role, err := sm.ParseToken(strings.TrimSpace(h[7:]))
	if err != nil {
		return nil
	}
	return &SessionUser{ID: id, Role: role}
}

func (sm *SessionManager) fromSession(r *http.Request) *SessionUser {
	sess := sm.session(r)
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil
	}
	return &SessionUser{
		ID:    getString(sess, userIDKey),
		Name:  getString(sess, userName),
		Email: getString(sess, userEmail),
		Role:  getString(sess, userRole),
	}
}

// RequireSignedIn rejects anonymous callers with 401.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			jsonutil.Error(w, r, sm.log, apierr.Unauthorized("sign in required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects anonymous callers with 401 and callers whose role is
// not in allowed with 403.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				jsonutil.Error(w, r, sm.log, apierr.Unauthorized("sign in required"))
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				jsonutil.Error(w, r, sm.log, apierr.Forbidden("your role cannot do that"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
