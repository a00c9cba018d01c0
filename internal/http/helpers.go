package http

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"homebudget/internal/api"
	"homebudget/internal/core"
	"homebudget/internal/log"
	"homebudget/internal/session"
)

// sessionContext carries the resolved identity for one request.
type sessionContext struct {
	SID   string
	User  core.User
	Token string
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sctx sessionContext)

// withSession gates a handler on a confirmed session. A missing
// session routes to login; an expired one additionally carries the
// expiry notice (shown once, since invalidation already happened in
// the manager).
func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := s.sessionID(r)
		user, token, err := s.sessions.Resolve(r.Context(), sid)
		if err != nil {
			target := "/login"
			if errors.Is(err, session.ErrExpired) {
				target = "/login?notice=expired"
			}
			s.clearSessionCookie(w)
			s.redirect(w, r, target)
			return
		}
		next(w, r, sessionContext{SID: sid, User: user, Token: token})
	}
}

// sessionID reads the opaque session id from the named cookie.
func (s *Server) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(s.opts.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isHTMX reports whether the request came from htmx rather than a
// full-page navigation.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect sends the browser to target, using HX-Redirect for htmx
// requests so the whole page navigates instead of the swap target.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// respondAPIError converts a backend failure into the section-level
// response: unauthorized clears the session and routes to login,
// business rejections surface the server's message with the form left
// open, transport failures surface a generic notice.
func (s *Server) respondAPIError(w http.ResponseWriter, r *http.Request, sctx sessionContext, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		s.sessions.Invalidate(r.Context(), sctx.SID)
		s.clearSessionCookie(w)
		s.redirect(w, r, "/login?notice=expired")
		return
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(apiErr.Message).
			Write(w)
		return
	}

	// No response from the backend at all.
	NewHTMXResponse().
		Status(http.StatusBadGateway).
		TriggerErrorNotification("Could not reach the server. Please try again.").
		Write(w)
}

// render executes a template into a buffer first so a render failure
// can still produce a clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			"template", name,
			log.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
