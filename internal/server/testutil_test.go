package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory Store used by handler tests. It mirrors the
// Mongo implementation's behavior closely enough for the API layer: field
// maps use the document key names, singletons are created on first read.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*User
	posts    map[string]*BlogPost
	landing  *LandingPage
	settings *SiteSettings
	pingErr  error
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]*User{},
		posts: map[string]*BlogPost{},
	}
}

func (m *memStore) Ping(ctx context.Context) error  { return m.pingErr }
func (m *memStore) Close(ctx context.Context) error { return nil }

func (m *memStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return errDuplicate
		}
	}
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.users[u.ID.Hex()] = &cp
	return nil
}

func (m *memStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (m *memStore) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateUser(ctx context.Context, id string, fields map[string]any) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errNotFound
	}
	for k, v := range fields {
		switch k {
		case "email":
			email := v.(string)
			for otherID, other := range m.users {
				if otherID != id && other.Email == email {
					return nil, errDuplicate
				}
			}
			u.Email = email
		case "displayName":
			u.DisplayName = v.(string)
		case "passwordHash":
			u.PasswordHash = v.(string)
		case "isAdmin":
			u.IsAdmin = v.(bool)
		default:
			return nil, fmt.Errorf("memStore: unknown user field %q", k)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return errNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreatePost(ctx context.Context, p *BlogPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Media == nil {
		p.Media = []string{}
	}
	cp := *p
	m.posts[p.ID.Hex()] = &cp
	return nil
}

func (m *memStore) PostByID(ctx context.Context, id string) (*BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListPosts(ctx context.Context, publishedOnly bool) ([]BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BlogPost, 0, len(m.posts))
	for _, p := range m.posts {
		if publishedOnly && !p.Published {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdatePost(ctx context.Context, id string, fields map[string]any) (*BlogPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, errNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "body":
			p.Body = v.(string)
		case "published":
			p.Published = v.(bool)
		case "media":
			p.Media = v.([]string)
		default:
			return nil, fmt.Errorf("memStore: unknown post field %q", k)
		}
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (m *memStore) DeletePost(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return errNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memStore) landingLocked() *LandingPage {
	if m.landing == nil {
		m.landing = defaultLandingPage()
	}
	return m.landing
}

func (m *memStore) LandingPage(ctx context.Context) (*LandingPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.landingLocked()
	return &cp, nil
}

func (m *memStore) UpdateLandingPage(ctx context.Context, fields map[string]any) (*LandingPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lp := m.landingLocked()
	for k, v := range fields {
		switch k {
		case "heroTitle":
			lp.HeroTitle = v.(string)
		case "heroSubtitle":
			lp.HeroSubtitle = v.(string)
		case "heroMedia":
			lp.HeroMedia = v.([]string)
		case "reels":
			lp.Reels = v.([]Reel)
		default:
			return nil, fmt.Errorf("memStore: unknown landing field %q", k)
		}
	}
	lp.UpdatedAt = time.Now().UTC()
	cp := *lp
	return &cp, nil
}

func (m *memStore) AddReel(ctx context.Context, r Reel) (*LandingPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lp := m.landingLocked()
	lp.Reels = append(lp.Reels, r)
	lp.UpdatedAt = time.Now().UTC()
	cp := *lp
	return &cp, nil
}

func (m *memStore) RemoveReel(ctx context.Context, reelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lp := m.landingLocked()
	for i, r := range lp.Reels {
		if r.ID == reelID {
			lp.Reels = append(lp.Reels[:i], lp.Reels[i+1:]...)
			lp.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return errNotFound
}

func (m *memStore) ReplaceReels(ctx context.Context, reels []Reel) (*LandingPage, error) {
	if reels == nil {
		reels = []Reel{}
	}
	return m.UpdateLandingPage(ctx, map[string]any{"reels": reels})
}

func (m *memStore) settingsLocked() *SiteSettings {
	if m.settings == nil {
		m.settings = defaultSiteSettings()
	}
	return m.settings
}

func (m *memStore) SiteSettings(ctx context.Context) (*SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.settingsLocked()
	return &cp, nil
}

func (m *memStore) UpdateSiteSettings(ctx context.Context, fields map[string]any) (*SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.settingsLocked()
	for k, v := range fields {
		switch k {
		case "contactEmail":
			st.ContactEmail = v.(string)
		case "contactPhone":
			st.ContactPhone = v.(string)
		case "socialLinks":
			st.SocialLinks = v.(map[string]string)
		case "features":
			st.Features = v.(map[string]bool)
		default:
			return nil, fmt.Errorf("memStore: unknown settings field %q", k)
		}
	}
	st.UpdatedAt = time.Now().UTC()
	cp := *st
	return &cp, nil
}

// fakeMedia records uploads and hands back deterministic URLs.
type fakeMedia struct {
	mu      sync.Mutex
	uploads []uploadedFile
	err     error
}

func (f *fakeMedia) Upload(ctx context.Context, file uploadedFile, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, file)
	return fmt.Sprintf("https://media.test/%s/%d-%s", strings.Trim(folder, "/"), len(f.uploads), file.Name), nil
}

func (f *fakeMedia) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

const testSecret = "test-secret"

// newTestServer wires a server around the in-memory fakes. Rate limiting
// stays off so tests can hammer the handler.
func newTestServer(store Store, media MediaStore) *Server {
	return New(Config{
		Auth:           AuthConfig{Secret: testSecret},
		Store:          store,
		Media:          media,
		AllowedOrigins: []string{"http://allowed.test"},
		UploadsDir:     "testdata",
	})
}

// doJSON runs one request through the full middleware chain.
func doJSON(t *testing.T, s *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// doMultipart posts a multipart form with files under the "media" field.
func doMultipart(t *testing.T, s *Server, method, path string, files []uploadedFile, fields map[string]string, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename="%s"`, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(f.Data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

// seedUser creates an account directly in the store and returns it with a
// valid bearer token.
func seedUser(s *Server, store Store, email string, admin bool) (*User, string) {
	hash, err := hashPassword("pass1234word")
	if err != nil {
		panic(err)
	}
	u := &User{Email: email, PasswordHash: hash, IsAdmin: admin}
	if err := store.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	tok, _, err := s.auth.makeToken(u.ID.Hex())
	if err != nil {
		panic(err)
	}
	return u, tok
}
