package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type userStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

type sessionStore interface {
	CreateSession(ctx context.Context, user *User) (Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// AuthService registers users and moves sessions between the anonymous and
// authenticated states.
type AuthService struct {
	users    userStore
	sessions sessionStore
	log      *slog.Logger
	cost     int

	// compared against when the email is unknown so both failure paths
	// pay for a bcrypt comparison
	dummyHash string
}

func NewAuthService(users userStore, sessions sessionStore, log *slog.Logger, cost int) *AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		log:       log,
		cost:      cost,
		dummyHash: mustHashPassword("not-a-real-password", cost),
	}
}

type registerInput struct {
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required"`
}

func (a *AuthService) Register(ctx context.Context, email, password string) (*User, error) {
	user, err := a.register(ctx, email, password)
	authEventsTotal.WithLabelValues("register", outcome(err)).Inc()
	return user, err
}

func (a *AuthService) register(ctx context.Context, email, password string) (*User, error) {
	in := registerInput{Email: strings.TrimSpace(email), Password: password}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	// bcrypt only looks at the first 72 bytes
	if len(in.Password) > 72 {
		return nil, &ValidationError{Fields: []string{"password"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := a.users.CreateUser(ctx, in.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			a.log.Info("registration rejected, email taken", slog.String("email", in.Email))
		}
		return nil, err
	}

	a.log.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
		slog.Bool("admin", user.IsAdmin))
	return user, nil
}

// Login checks the credentials and returns a persisted, authenticated
// session carrying the user's admin flag as of now.
func (a *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	session, err := a.login(ctx, email, password)
	authEventsTotal.WithLabelValues("login", outcome(err)).Inc()
	return session, err
}

func (a *AuthService) login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if user == nil {
		checkPassword(a.dummyHash, password)
		a.log.Warn("login failed", slog.String("email", email), slog.String("reason", "unknown email"))
		return Session{}, ErrInvalidCredentials
	}
	if !checkPassword(user.PasswordHash, password) {
		a.log.Warn("login failed", slog.String("email", email), slog.String("reason", "wrong password"))
		return Session{}, ErrInvalidCredentials
	}

	session, err := a.sessions.CreateSession(ctx, user)
	if err != nil {
		return Session{}, err
	}

	a.log.Info("user logged in", slog.Int64("user_id", user.ID), slog.Bool("admin", user.IsAdmin))
	return session, nil
}

// Logout ends the session and resets it to anonymous. Logging out an
// anonymous session does nothing.
func (a *AuthService) Logout(ctx context.Context, session *Session) error {
	if session == nil || *session == (Session{}) {
		return nil
	}

	if session.Token != "" {
		if err := a.sessions.DeleteSession(ctx, session.Token); err != nil {
			authEventsTotal.WithLabelValues("logout", outcome(err)).Inc()
			return err
		}
	}

	a.log.Info("user logged out", slog.Int64("user_id", session.UserID))
	*session = Session{}
	authEventsTotal.WithLabelValues("logout", "ok").Inc()
	return nil
}

func mustHashPassword(password string, cost int) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

func checkPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
