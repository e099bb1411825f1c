package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

const testCSRFToken = "test-csrf-token-12345"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := openDB(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err = initDB(db); err != nil {
		t.Fatalf("initializing test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func setupTestBlog(t *testing.T) *Blog {
	t.Helper()
	store := setupTestStore(t)

	cfg := Config{BcryptCost: bcrypt.MinCost}
	return NewBlog(store.db, cfg, testLogger())
}

// addCSRFToken adds a CSRF token to the request (cookie + form value)
func addCSRFToken(req *http.Request, form url.Values) {
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testCSRFToken})
	if form != nil {
		form.Set(csrfFieldName, testCSRFToken)
	}
}

func newFormRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	addCSRFToken(req, form)
	req.Body = io.NopCloser(strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// login registers email if needed and returns a session cookie for it.
func login(t *testing.T, blog *Blog, email, password string) *http.Cookie {
	t.Helper()
	ctx := context.Background()

	user, err := blog.store.GetUserByEmail(ctx, email)
	if err != nil {
		t.Fatalf("looking up %s: %v", email, err)
	}
	if user == nil {
		if _, err := blog.auth.Register(ctx, email, password); err != nil {
			t.Fatalf("registering %s: %v", email, err)
		}
	}

	session, err := blog.auth.Login(ctx, email, password)
	if err != nil {
		t.Fatalf("logging in %s: %v", email, err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: session.Token}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func flashMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	c := findCookie(w.Result(), flashCookieName)
	if c == nil {
		return ""
	}
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		t.Fatalf("decoding flash cookie: %v", err)
	}
	return msg
}
