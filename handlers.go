package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// render executes page into a buffer and writes it only on success.
func (b *Blog) render(w http.ResponseWriter, r *http.Request, page string, data map[string]any) {
	data["Session"] = sessionFromContext(r.Context())
	data["Flash"] = b.popFlash(w, r)
	data["CSRFToken"] = b.ensureCSRFToken(w, r)

	var buf bytes.Buffer
	if err := b.templates[page].ExecuteTemplate(&buf, "base", data); err != nil {
		b.serverError(w, r, fmt.Errorf("rendering %s: %w", page, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (b *Blog) serverError(w http.ResponseWriter, r *http.Request, err error) {
	b.log.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// handleError turns a service error into a notice and a redirect to back,
// a 404, or a generic 500.
func (b *Blog) handleError(w http.ResponseWriter, r *http.Request, err error, back string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		b.redirectWithFlash(w, r, back, "Please check "+joinFields(verr.Fields)+".")
	case errors.Is(err, ErrDuplicateEmail):
		b.redirectWithFlash(w, r, back, "That email is already registered.")
	case errors.Is(err, ErrInvalidCredentials):
		b.redirectWithFlash(w, r, back, "Invalid email or password.")
	case errors.Is(err, ErrUnauthorized):
		b.redirectWithFlash(w, r, "/login", "Please log in as an administrator to continue.")
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
	default:
		b.serverError(w, r, err)
	}
}

func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return "the form"
	case 1:
		return fields[0]
	}
	s := ""
	for i, f := range fields {
		switch {
		case i == 0:
		case i == len(fields)-1:
			s += " and "
		default:
			s += ", "
		}
		s += f
	}
	return s
}

func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (b *Blog) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	posts, err := b.posts.List(r.Context())
	if err != nil {
		b.serverError(w, r, err)
		return
	}

	intro, err := b.store.GetSetting(r.Context(), "intro")
	if err != nil {
		b.serverError(w, r, err)
		return
	}

	b.render(w, r, "home.html", map[string]any{
		"Title": "Home",
		"Posts": posts,
		"Intro": intro,
	})
}

func (b *Blog) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	post, err := b.posts.Get(r.Context(), id)
	if err != nil {
		b.handleError(w, r, err, "/")
		return
	}

	b.render(w, r, "detail.html", map[string]any{
		"Title": post.Title,
		"Post":  post,
	})
}

func (b *Blog) Register(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := b.store.CountUsers(r.Context())
		if err != nil {
			b.serverError(w, r, err)
			return
		}

		b.render(w, r, "register.html", map[string]any{
			"Title":     "Register",
			"FirstUser": users == 0,
		})
	case http.MethodPost:
		if !parseFormWithCSRF(w, r) {
			return
		}

		user, err := b.auth.Register(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
		if err != nil {
			b.handleError(w, r, err, "/register")
			return
		}

		msg := "Account created. Please log in."
		if user.IsAdmin {
			msg = "Account created with administrator access. Please log in."
		}
		b.redirectWithFlash(w, r, "/login", msg)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (b *Blog) Login(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		b.render(w, r, "login.html", map[string]any{"Title": "Login"})
	case http.MethodPost:
		if !parseFormWithCSRF(w, r) {
			return
		}

		session, err := b.auth.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
		if err != nil {
			b.handleError(w, r, err, "/login")
			return
		}

		// Drop whatever session the client held before.
		previous := sessionFromContext(r.Context())
		if err := b.auth.Logout(r.Context(), &previous); err != nil {
			b.log.Warn("ending previous session", slog.String("error", err.Error()))
		}

		b.setSessionCookie(w, session.Token)
		if session.IsAdmin {
			b.redirectWithFlash(w, r, "/dashboard", "Welcome back.")
			return
		}
		b.redirectWithFlash(w, r, "/", "Logged in as "+session.Email+".")
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (b *Blog) Logout(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	if err := b.auth.Logout(r.Context(), &session); err != nil {
		b.serverError(w, r, err)
		return
	}

	b.clearSessionCookie(w)
	b.redirectWithFlash(w, r, "/", "Logged out.")
}

func (b *Blog) Dashboard(w http.ResponseWriter, r *http.Request) {
	posts, err := b.posts.List(r.Context())
	if err != nil {
		b.serverError(w, r, err)
		return
	}

	b.render(w, r, "dashboard.html", map[string]any{
		"Title": "Dashboard",
		"Posts": posts,
	})
}

func (b *Blog) Create(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		b.render(w, r, "create.html", map[string]any{"Title": "New Post"})
	case http.MethodPost:
		if !parseFormWithCSRF(w, r) {
			return
		}

		session := sessionFromContext(r.Context())
		_, err := b.posts.Create(r.Context(), session, r.PostFormValue("title"), r.PostFormValue("content"))
		if err != nil {
			b.handleError(w, r, err, "/create")
			return
		}

		b.redirectWithFlash(w, r, "/", "Post published.")
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (b *Blog) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		post, err := b.posts.Get(r.Context(), id)
		if err != nil {
			b.handleError(w, r, err, "/dashboard")
			return
		}

		b.render(w, r, "edit.html", map[string]any{
			"Title": fmt.Sprintf("Editing %q", post.Title),
			"Post":  post,
		})
	case http.MethodPost:
		if !parseFormWithCSRF(w, r) {
			return
		}

		session := sessionFromContext(r.Context())
		_, err := b.posts.Update(r.Context(), session, id, r.PostFormValue("title"), r.PostFormValue("content"))
		if err != nil {
			b.handleError(w, r, err, fmt.Sprintf("/edit/%d", id))
			return
		}

		b.redirectWithFlash(w, r, "/", "Post updated.")
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Delete removes a post straight from the dashboard link. The link carries
// the CSRF token as a query parameter.
func (b *Blog) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	if !validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return
	}

	session := sessionFromContext(r.Context())
	if err := b.posts.Delete(r.Context(), session, id); err != nil {
		b.handleError(w, r, err, "/dashboard")
		return
	}

	b.redirectWithFlash(w, r, "/dashboard", "Post deleted.")
}

func (b *Blog) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		intro, err := b.store.GetSetting(r.Context(), "intro")
		if err != nil {
			b.serverError(w, r, err)
			return
		}

		b.render(w, r, "settings.html", map[string]any{
			"Title": "Settings",
			"Intro": intro,
		})
	case http.MethodPost:
		if !parseFormWithCSRF(w, r) {
			return
		}

		if err := b.store.SetSetting(r.Context(), "intro", r.PostFormValue("intro")); err != nil {
			b.serverError(w, r, err)
			return
		}

		b.redirectWithFlash(w, r, "/settings", "Settings saved.")
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
