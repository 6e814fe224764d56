package api

import (
	"context"
	"net/http"

	"github.com/viewavocats/estimia/internal/session"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "estimia_session"

type sessionKey struct{}

// sessionMiddleware attaches the caller's session, issuing a new cookie when
// the presented one is missing, unknown or expired.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
		st, created := s.sessions.GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    st.ID,
				Path:     "/",
				MaxAge:   int(s.opts.SessionTTL.Seconds()),
				HttpOnly: true,
				Secure:   s.opts.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, st)))
	})
}

func sessionFrom(ctx context.Context) *session.State {
	st, _ := ctx.Value(sessionKey{}).(*session.State)
	return st
}
