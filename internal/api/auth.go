package api

import (
	"net/http"

	"github.com/grapher3d/grapher-core/internal/auth"
	"github.com/grapher3d/grapher-core/internal/request"
)

// Response bodies for the session endpoints.
const (
	msgSuccess   = "Success"
	msgLoggedOut = "Logged out successfully"
)

// parse builds the request context with this server's cookie name.
func (s *Server) parse(r *http.Request) *request.Context {
	return request.Parse(r, s.cookieName)
}

// body returns the parsed "key: value" body, writing a 400 when it cannot
// be read.
func (s *Server) body(w http.ResponseWriter, rc *request.Context) (request.Fields, bool) {
	fields, err := rc.Body()
	if err != nil {
		s.logger.Debug("unreadable request body", "path", rc.Path, "error", err)
		writeBadRequest(w, MsgInvalidParams)
		return nil, false
	}
	return fields, true
}

// handleLogin checks email and password and answers with the raw session
// token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	fields, ok := s.body(w, rc)
	if !ok {
		return
	}

	token, err := s.accounts.Login(r.Context(), fields["email"], fields["password"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeText(w, token)
}

// handleRegister creates a user.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	fields, ok := s.body(w, rc)
	if !ok {
		return
	}

	if err := s.accounts.Register(r.Context(), fields["email"], fields["password"]); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeText(w, msgSuccess)
}

// handleValidate returns the email of the session in the token cookie.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	if !rc.HasToken() {
		writeNotFound(w, auth.MsgInvalidToken)
		return
	}

	email, err := s.accounts.Validate(r.Context(), rc.Token())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

// handleLogout clears the session in the token cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	rc := s.parse(r)
	if !rc.HasToken() {
		writeError(w, http.StatusConflict, ErrCodeConflict, auth.MsgNotLoggedIn)
		return
	}

	if err := s.accounts.Logout(rc.Token()); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeText(w, msgLoggedOut)
}
