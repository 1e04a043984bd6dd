package common

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/matst80/slask-catalog/pkg/types"
)

const SessionCookie = "sid"

func setSessionCookie(w http.ResponseWriter, r *http.Request, sessionId string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sessionId,
		Domain:   strings.TrimPrefix(hostname(r.Host), "."),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 30,
		Path:     "/",
	})
}

func hostname(host string) string {
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		return host[:i]
	}
	return host
}

// ClientIp prefers the proxy headers over the remote address.
func ClientIp(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	return r.RemoteAddr
}

// HandleSessionCookie returns the session id from the sid cookie, starting
// a new session when the cookie is missing or not a valid id.
func HandleSessionCookie(tracking types.Tracking, w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	sessionId := uuid.NewString()
	if tracking != nil {
		go tracking.TrackSession(sessionId, r.UserAgent(), ClientIp(r))
	}
	setSessionCookie(w, r, sessionId)
	return sessionId
}
