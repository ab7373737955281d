// auth.go - Bearer token authentication and admin gating.
//
// Tokens are HMAC-signed "payload.signature" strings where the payload is
// base64(JSON{sub,exp}) and sub is the user's document id. A missing
// Authorization header is 401; a token that fails verification, or whose
// subject no longer resolves to a user, is 403.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// AuthConfig holds the token secret and lifetime used by the auth
// middleware. Unit tests construct this directly.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type tokenPayload struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

// ttl defaults an unset lifetime; a negative value is kept as-is so a
// caller can mint an already-expired token.
func (a AuthConfig) ttl() time.Duration {
	if a.TokenTTL == 0 {
		return 12 * time.Hour
	}
	return a.TokenTTL
}

func (a AuthConfig) secretBytes() []byte {
	return []byte(a.Secret)
}

func signPayload(secret []byte, msg string) string {
	m := hmac.New(sha256.New, secret)
	_, _ = m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func encodePayload(p tokenPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodePayload(token string) (tokenPayload, error) {
	var p tokenPayload
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// makeToken returns "payload.signature" with the user id as subject.
func (a AuthConfig) makeToken(sub string) (string, time.Time, error) {
	exp := time.Now().Add(a.ttl())
	p := tokenPayload{Sub: sub, Exp: exp.Unix()}
	payload, err := encodePayload(p)
	if err != nil {
		return "", time.Time{}, err
	}
	sig := signPayload(a.secretBytes(), payload)
	return payload + "." + sig, exp, nil
}

func (a AuthConfig) verifyToken(tok string) (tokenPayload, error) {
	var p tokenPayload
	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return p, errors.New("invalid token format")
	}
	payload := parts[0]
	sig := parts[1]
	want := signPayload(a.secretBytes(), payload)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return p, errors.New("invalid signature")
	}
	decoded, err := decodePayload(payload)
	if err != nil {
		return p, err
	}
	if decoded.Exp <= time.Now().Unix() {
		return p, errors.New("expired")
	}
	return decoded, nil
}

const userKey ctxKey = "auth_user"

// userFromContext returns the authenticated user attached by requireAuth.
func userFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// bearerToken pulls the token out of "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth verifies the bearer token, resolves its subject against the
// users collection, and attaches the user to the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		payload, err := s.auth.verifyToken(tok)
		if err != nil {
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}
		user, err := s.store.UserByID(r.Context(), payload.Sub)
		if err != nil {
			// A token for a deleted user is as good as forged.
			if errors.Is(err, errNotFound) {
				writeError(w, http.StatusForbidden, "Access denied")
				return
			}
			writeStoreError(w, r, "auth_lookup", err)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin assumes requireAuth has run and gates on the admin flag.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user == nil || !user.IsAdmin {
			writeError(w, http.StatusForbidden, "Access denied. Admins only.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
