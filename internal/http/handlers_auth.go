package http

import (
	"errors"
	"net/http"

	"homebudget/internal/api"
	"homebudget/internal/log"
)

// authPageData feeds the login and register templates. Notice is a
// banner shown on arrival (registration confirmed, session expired,
// logged out); submission failures arrive as notification triggers
// instead.
type authPageData struct {
	Notice     string
	NoticeType string
}

// notices maps the notice query parameter to banner text. The values
// arrive via redirects, never user input, but unknown keys render
// nothing either way.
var notices = map[string]authPageData{
	"expired":    {Notice: "Your session has expired. Please log in again.", NoticeType: "error"},
	"registered": {Notice: "Account created. You can log in now.", NoticeType: "success"},
	"logged-out": {Notice: "You have been logged out.", NoticeType: "success"},
}

// respondAuthError surfaces a login or registration rejection. Unlike
// authenticated calls, a 401 here means bad credentials rather than an
// expired session, so the server's message is shown and nothing is
// invalidated.
func respondAuthError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(apiErr.Message).
			Write(w)
		return
	}
	NewHTMXResponse().
		Status(http.StatusBadGateway).
		TriggerErrorNotification("Could not reach the server. Please try again.").
		Write(w)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// An already-confirmed session skips the form entirely.
	if _, _, err := s.sessions.Resolve(r.Context(), s.sessionID(r)); err == nil {
		http.Redirect(w, r, "/budgets", http.StatusSeeOther)
		return
	}

	data := notices[r.URL.Query().Get("notice")]
	s.render(w, r, "login.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		NewHTMXResponse().
			Status(http.StatusBadRequest).
			TriggerErrorNotification("Invalid request").
			Write(w)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification("Enter a username and password").
			Write(w)
		return
	}

	sid, user, err := s.sessions.Login(r.Context(), username, password)
	if err != nil {
		// The server's rejection message is surfaced verbatim. Any
		// prior session stays untouched.
		respondAuthError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User logged in",
		log.FieldUsername, user.Username,
		log.FieldOperation, log.OpLogin)

	s.setSessionCookie(w, sid)
	s.redirect(w, r, "/budgets")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", authPageData{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		NewHTMXResponse().
			Status(http.StatusBadRequest).
			TriggerErrorNotification("Invalid request").
			Write(w)
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification("Enter a username and password").
			Write(w)
		return
	}

	if err := s.sessions.Register(r.Context(), username, password); err != nil {
		respondAuthError(w, err)
		return
	}

	s.redirect(w, r, "/login?notice=registered")
}

// handleLogout clears the session unconditionally: logout cannot fail
// from the browser's point of view.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(r.Context(), s.sessionID(r))
	s.clearSessionCookie(w)
	s.redirect(w, r, "/login?notice=logged-out")
}
