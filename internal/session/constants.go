// Package session keeps one server-side form session per browser.
//
// A form session owns the Form-State Store, the Submission Pipeline and the
// current plan image reference. Sessions live in memory only and expire
// after an idle TTL.
package session

import "time"

const (
	// CookieName is the name of the cookie that stores the form session id.
	CookieName = "soilsheet_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// DefaultTTL is how long an untouched form session is kept.
	DefaultTTL = 12 * time.Hour

	// DefaultSweepInterval is how often expired sessions are removed.
	DefaultSweepInterval = 5 * time.Minute
)
