package model

import "time"

// sessionMaxAge is how long restored cookies are trusted without a fresh login.
const sessionMaxAge = 24 * time.Hour

// Credential is one platform account.
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the persisted authentication state for one platform account.
// Mutated only by the session manager; scrapers read it.
type Session struct {
	Platform    Platform   `json:"platform"`
	Credential  Credential `json:"-"`
	CookieBlob  []byte     `json:"cookie_blob,omitempty"`
	LastLoginAt time.Time  `json:"last_login_at"`
	IsValid     bool       `json:"is_valid"`
}

// Fresh reports whether the persisted cookies can be reused without logging
// in again. Freshness is not verification; the first real navigation may
// still hit a login redirect.
func (s *Session) Fresh(now time.Time) bool {
	if len(s.CookieBlob) == 0 {
		return false
	}
	return now.Sub(s.LastLoginAt) < sessionMaxAge
}
