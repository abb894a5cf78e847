package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/xid"
)

const (
	sessionCookieName = "storefront_session"
	sessionIDPrefix   = "sess"
	sessionIssuer     = "storefront"
)

var ErrInvalidSession = errors.New("invalid or expired session")

// SessionManager issues and verifies the signed tokens that scope a cart to
// one browsing session. No server-side session state is kept.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl}
}

func (m *SessionManager) Issue() (domain.SessionResponse, error) {
	sessionID := xid.New(sessionIDPrefix)
	now := time.Now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := jwtlib.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		Issuer:    sessionIssuer,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return domain.SessionResponse{}, err
	}

	return domain.SessionResponse{
		SessionToken: token,
		SessionID:    sessionID,
		ExpiresAt:    expiresAt.Format(time.RFC3339),
	}, nil
}

// Parse returns the session id carried by a valid token.
func (m *SessionManager) Parse(tokenStr string) (string, error) {
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(sessionIssuer))
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}
	sub, err := claims.GetSubject()
	if err != nil || !xid.Valid(sessionIDPrefix, sub) {
		return "", ErrInvalidSession
	}
	return sub, nil
}

func (m *SessionManager) cookie(resp domain.SessionResponse) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    resp.SessionToken,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// tokenFromRequest prefers a bearer token and falls back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):])
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

type sessionKey struct{}

func withSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionKey{}).(string)
	return sessionID
}
