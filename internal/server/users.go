// users.go - Registration, login, and account management.
package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// registerReq represents the JSON payload for user registration
type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// loginReq represents the JSON payload for login
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResp carries the bearer token and the authenticated account.
type loginResp struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// hashPassword generates a bcrypt hash of the password
func hashPassword(password string) (string, error) {
	// bcrypt cost of 12 is a good balance of security and performance
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword compares a password with its hash
func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// registerHandler handles POST /api/users. New accounts are never admins;
// the flag is flipped directly in the database when needed.
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if !validateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if valid, msg := validatePassword(req.Password); !valid {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=hash_failed err=%v", rid, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	user := &User{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      false,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, errDuplicate) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeStoreError(w, r, "register_insert", err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// loginHandler handles POST /api/users/login and issues a signed bearer
// token. Failed attempts feed the account lockout.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if s.lockout.isLocked(req.Email) {
		writeError(w, http.StatusTooManyRequests, "Too many failed attempts. Try again later.")
		return
	}

	user, err := s.store.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, errNotFound) {
			// Same response as a wrong password; no account probing.
			GetMetrics().RecordLoginAttempt(false)
			s.lockout.recordFailure(req.Email)
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		writeStoreError(w, r, "login_lookup", err)
		return
	}

	if !verifyPassword(req.Password, user.PasswordHash) {
		GetMetrics().RecordLoginAttempt(false)
		if locked := s.lockout.recordFailure(req.Email); locked {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=account_locked email=%s", rid, req.Email)
		}
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	s.lockout.recordSuccess(req.Email)
	GetMetrics().RecordLoginAttempt(true)

	token, _, err := s.auth.makeToken(user.ID.Hex())
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=token_issue_failed err=%v", rid, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	writeJSON(w, http.StatusOK, loginResp{Token: token, User: user})
}

// canAccessUser allows the account owner and admins.
func canAccessUser(actor *User, id string) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin || actor.ID.Hex() == id
}

// getUserHandler handles GET /api/users/{id} (self or admin).
func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !canAccessUser(userFromContext(r.Context()), id) {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}
	user, err := s.store.UserByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "user_get", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// userPatch uses pointers so absent fields stay untouched.
type userPatch struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"displayName"`
	Password    *string `json:"password"`
}

// updateUserHandler handles PUT /api/users/{id} (self or admin).
func (s *Server) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !canAccessUser(userFromContext(r.Context()), id) {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	var patch userPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := map[string]any{}
	if patch.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*patch.Email))
		if !validateEmail(email) {
			writeError(w, http.StatusBadRequest, "Invalid email address")
			return
		}
		fields["email"] = email
	}
	if patch.DisplayName != nil {
		fields["displayName"] = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Password != nil {
		if valid, msg := validatePassword(*patch.Password); !valid {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		hash, err := hashPassword(*patch.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Something went wrong!")
			return
		}
		fields["passwordHash"] = hash
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	user, err := s.store.UpdateUser(r.Context(), id, fields)
	if err != nil {
		if errors.Is(err, errDuplicate) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeStoreError(w, r, "user_update", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// listUsersHandler handles GET /api/users (admin only via routing).
func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, r, "user_list", err)
		return
	}
	if users == nil {
		users = []User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// deleteUserHandler handles DELETE /api/users/{id} (admin only via routing).
func (s *Server) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, "user_delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
