package web

import (
	"net"
	"net/http"
	"time"
)

// accessCookieName holds the grant token: the child code's identifier,
// never the plaintext code or its hash.
const accessCookieName = "access_token"

// setAccessCookie instructs the client to hold the grant token for the
// full validity window of the redeemed code.
func setAccessCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearAccessCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clientAddr extracts the requesting IP. The grant binds to this value,
// so it deliberately ignores client-supplied forwarding headers; run the
// service behind a proxy that rewrites RemoteAddr if one is in play.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
