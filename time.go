package onboard

import "time"

// temporaryPasswordStale reports whether a temporary password issued at
// the given time has outlived the ttl, a duration string such as "72h".
func temporaryPasswordStale(issuedAt time.Time, ttl string) (bool, error) {
	window, err := time.ParseDuration(ttl)
	if err != nil {
		return false, err
	}

	return issuedAt.Before(time.Now().Add(-window)), nil
}
