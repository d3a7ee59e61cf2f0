package auth

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/grapher3d/grapher-core/internal/apperr"
	"github.com/grapher3d/grapher-core/internal/credential"
	"github.com/grapher3d/grapher-core/internal/datastore"
	"github.com/grapher3d/grapher-core/internal/infrastructure/logging"
	"github.com/grapher3d/grapher-core/internal/session"
)

// Client-facing messages.
const (
	MsgUserExists    = "User already exists"
	MsgUserNotFound  = "User does not exist"
	MsgInvalidPass   = "Invalid Password"
	MsgNotLoggedIn   = "Not logged in"
	MsgMissingFields = "Requires email and password"
	MsgInvalidToken  = "Invalid session"
	MsgEmailTooLong  = "Email is too long"
)

var (
	byEmail = datastore.Where("email=?")
	byID    = datastore.Where("id=?")
)

// Accounts registers users and manages their sessions.
type Accounts struct {
	sessions *session.Store
	store    *datastore.Store
	users    *datastore.TableSchema
	logger   *logging.Logger
}

// NewAccounts creates an account service over the Users table.
func NewAccounts(sessions *session.Store, store *datastore.Store, tables *datastore.Tables, logger *logging.Logger) *Accounts {
	return &Accounts{
		sessions: sessions,
		store:    store,
		users:    tables.Users,
		logger:   logger.With("component", "accounts"),
	}
}

// Register creates a user with a freshly salted credential.
func (a *Accounts) Register(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return apperr.New(apperr.Validation, MsgMissingFields)
	}
	if utf8.RuneCountInString(email) > datastore.EmailSize {
		return apperr.New(apperr.Validation, MsgEmailTooLong)
	}

	cred, err := credential.New(password)
	if err != nil {
		return fmt.Errorf("creating credential: %w", err)
	}

	var uid int32
	err = a.store.InTx(ctx, func(ctx context.Context, q *datastore.Queries) error {
		exists, err := q.Exists(ctx, a.users, byEmail, email)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.Conflict, MsgUserExists)
		}

		uid, err = q.UniqueID(ctx, a.users)
		if err != nil {
			return err
		}
		return q.Insert(ctx, a.users, uid, email, cred.Hash(), cred.Salt())
	})
	if err != nil {
		return err
	}

	a.logger.Info("user registered", "user_id", uid)
	return nil
}

// Login checks the password for email and opens a session.
func (a *Accounts) Login(ctx context.Context, email, password string) (string, error) {
	rows, err := a.store.SelectWhere(ctx, a.users, byEmail, email)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", apperr.New(apperr.NotFound, MsgUserNotFound)
	}

	row := rows[0]
	uid, err := parseID(a.users.Field(row, "id"))
	if err != nil {
		return "", fmt.Errorf("%w: user row: %w", datastore.ErrDataAccess, err)
	}

	stored := credential.FromStored(a.users.Field(row, "passwordHash"), a.users.Field(row, "passwordSalt"))
	if !stored.Matches(password) {
		a.logger.Debug("login rejected", "user_id", uid)
		return "", apperr.New(apperr.Authentication, MsgInvalidPass)
	}

	token, err := a.sessions.CreateToken(uid)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	a.logger.Info("session opened", "user_id", uid, "token", logging.Redact(token))
	return token, nil
}

// Validate returns the email of the session's user.
func (a *Accounts) Validate(ctx context.Context, token string) (string, error) {
	uid, ok := a.sessions.GetUID(token)
	if !ok {
		return "", apperr.New(apperr.NotFound, MsgInvalidToken)
	}
	return a.Email(ctx, uid)
}

// Email looks up a user's email by id.
func (a *Accounts) Email(ctx context.Context, uid int32) (string, error) {
	rows, err := a.store.SelectWhere(ctx, a.users, byID, uid)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", apperr.New(apperr.NotFound, MsgUserNotFound)
	}
	return a.users.Field(rows[0], "email"), nil
}

// Logout ends the session for token.
func (a *Accounts) Logout(token string) error {
	if !a.sessions.Clear(token) {
		return apperr.New(apperr.Conflict, MsgNotLoggedIn)
	}
	a.logger.Info("session closed", "token", logging.Redact(token))
	return nil
}

func parseID(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing id %q: %w", s, err)
	}
	return int32(n), nil
}
