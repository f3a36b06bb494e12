package domain

import "time"

func Ptr[T any](v T) *T {
	return &v
}

// ClearToken returns a hash and expiry pair that removes a pending token.
func ClearToken() (*string, *time.Time) {
	return Ptr(""), Ptr(time.Time{})
}
