package server

import (
	"net/http"
	"strings"
	"testing"
)

func TestRegister(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store, &fakeMedia{})

	t.Run("creates a non-admin account", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users", map[string]string{
			"email":       "New.User@Example.com",
			"password":    "hunter2hunter2",
			"displayName": "New User",
		}, "")
		wantStatus(t, rec, http.StatusCreated)

		var body map[string]any
		decodeBody(t, rec, &body)
		if body["email"] != "new.user@example.com" {
			t.Errorf("email = %v, want lowercased", body["email"])
		}
		if body["isAdmin"] != false {
			t.Errorf("isAdmin = %v, want false", body["isAdmin"])
		}
		if _, leaked := body["passwordHash"]; leaked {
			t.Error("password hash leaked in response")
		}
		if strings.Contains(rec.Body.String(), "hunter2") {
			t.Error("password material leaked in response")
		}
	})

	t.Run("duplicate email is 409", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users", map[string]string{
			"email":    "new.user@example.com",
			"password": "hunter2hunter2",
		}, "")
		wantStatus(t, rec, http.StatusConflict)
	})

	t.Run("invalid email is 400", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users", map[string]string{
			"email":    "not-an-email",
			"password": "hunter2hunter2",
		}, "")
		wantStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("weak password is 400", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users", map[string]string{
			"email":    "weak@example.com",
			"password": "short1",
		}, "")
		wantStatus(t, rec, http.StatusBadRequest)
	})
}

func TestLogin(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store, &fakeMedia{})
	user, _ := seedUser(s, store, "login@example.com", false)

	t.Run("issues a usable token", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{
			"email":    "login@example.com",
			"password": "pass1234word",
		}, "")
		wantStatus(t, rec, http.StatusOK)

		var body loginResp
		decodeBody(t, rec, &body)
		if body.Token == "" {
			t.Fatal("no token in response")
		}
		if body.User == nil || body.User.Email != user.Email {
			t.Fatalf("user = %+v", body.User)
		}

		// The issued token must authenticate a follow-up request.
		rec = doJSON(t, s, http.MethodGet, "/api/users/"+user.ID.Hex(), nil, body.Token)
		wantStatus(t, rec, http.StatusOK)
	})

	t.Run("wrong password is 401", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{
			"email":    "login@example.com",
			"password": "wrong1234word",
		}, "")
		wantStatus(t, rec, http.StatusUnauthorized)
	})

	t.Run("unknown account matches wrong password response", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{
			"email":    "nobody@example.com",
			"password": "pass1234word",
		}, "")
		wantStatus(t, rec, http.StatusUnauthorized)

		var body map[string]string
		decodeBody(t, rec, &body)
		if body["message"] != "Invalid email or password" {
			t.Errorf("message = %q, must not reveal account existence", body["message"])
		}
	})
}

func TestLoginLockout(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store, &fakeMedia{})
	seedUser(s, store, "victim@example.com", false)

	bad := map[string]string{"email": "victim@example.com", "password": "wrong1234word"}
	for i := 0; i < 5; i++ {
		rec := doJSON(t, s, http.MethodPost, "/api/users/login", bad, "")
		wantStatus(t, rec, http.StatusUnauthorized)
	}

	// Even the correct password is rejected while locked.
	rec := doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "victim@example.com",
		"password": "pass1234word",
	}, "")
	wantStatus(t, rec, http.StatusTooManyRequests)
}

func TestUserAccess(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store, &fakeMedia{})
	alice, aliceToken := seedUser(s, store, "alice@example.com", false)
	bob, bobToken := seedUser(s, store, "bob@example.com", false)
	_, adminToken := seedUser(s, store, "admin@example.com", true)

	t.Run("self read", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/users/"+alice.ID.Hex(), nil, aliceToken)
		wantStatus(t, rec, http.StatusOK)
	})

	t.Run("reading another account is 403", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/users/"+alice.ID.Hex(), nil, bobToken)
		wantStatus(t, rec, http.StatusForbidden)
	})

	t.Run("admin reads anyone", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/users/"+bob.ID.Hex(), nil, adminToken)
		wantStatus(t, rec, http.StatusOK)
	})

	t.Run("self update", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/api/users/"+alice.ID.Hex(), map[string]string{
			"displayName": "Alice A.",
		}, aliceToken)
		wantStatus(t, rec, http.StatusOK)
		var body map[string]any
		decodeBody(t, rec, &body)
		if body["displayName"] != "Alice A." {
			t.Errorf("displayName = %v", body["displayName"])
		}
	})

	t.Run("updating another account is 403", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/api/users/"+alice.ID.Hex(), map[string]string{
			"displayName": "Hacked",
		}, bobToken)
		wantStatus(t, rec, http.StatusForbidden)
	})

	t.Run("empty update is 400", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPut, "/api/users/"+alice.ID.Hex(), map[string]string{}, aliceToken)
		wantStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("delete is admin only", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodDelete, "/api/users/"+bob.ID.Hex(), nil, bobToken)
		wantStatus(t, rec, http.StatusForbidden)

		rec = doJSON(t, s, http.MethodDelete, "/api/users/"+bob.ID.Hex(), nil, adminToken)
		wantStatus(t, rec, http.StatusOK)

		rec = doJSON(t, s, http.MethodDelete, "/api/users/"+bob.ID.Hex(), nil, adminToken)
		wantStatus(t, rec, http.StatusNotFound)
	})
}

// TestRegisterLoginForbiddenDelete walks the whole credential flow: a fresh
// registration is never an admin, its login token works, and that token
// cannot delete someone else's post.
func TestRegisterLoginForbiddenDelete(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store, &fakeMedia{})
	_, authorToken := seedUser(s, store, "author@example.com", false)
	post := createPost(t, s, authorToken, map[string]any{"title": "Original", "published": true})

	rec := doJSON(t, s, http.MethodPost, "/api/users", map[string]string{
		"email":    "a@b.com",
		"password": "secret123",
	}, "")
	wantStatus(t, rec, http.StatusCreated)
	var created map[string]any
	decodeBody(t, rec, &created)
	if created["isAdmin"] != false {
		t.Fatalf("isAdmin = %v, want false", created["isAdmin"])
	}

	rec = doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "a@b.com",
		"password": "secret123",
	}, "")
	wantStatus(t, rec, http.StatusOK)
	var login loginResp
	decodeBody(t, rec, &login)

	rec = doJSON(t, s, http.MethodDelete, "/api/blogs/"+post.ID.Hex(), nil, login.Token)
	wantStatus(t, rec, http.StatusForbidden)
}

func TestPasswordChangeRehashes(t *testing.T) {
	store := newMemStore()
	s := newTestServer(store, &fakeMedia{})
	alice, aliceToken := seedUser(s, store, "alice@example.com", false)

	rec := doJSON(t, s, http.MethodPut, "/api/users/"+alice.ID.Hex(), map[string]string{
		"password": "newpass123word",
	}, aliceToken)
	wantStatus(t, rec, http.StatusOK)

	rec = doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "alice@example.com",
		"password": "newpass123word",
	}, "")
	wantStatus(t, rec, http.StatusOK)

	rec = doJSON(t, s, http.MethodPost, "/api/users/login", map[string]string{
		"email":    "alice@example.com",
		"password": "pass1234word",
	}, "")
	wantStatus(t, rec, http.StatusUnauthorized)
}
