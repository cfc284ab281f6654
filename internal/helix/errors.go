package helix

import (
	"errors"
	"net/http"

	kappopher "github.com/Its-donkey/kappopher/helix"
)

// IsConflict reports whether err is a Helix 409 Conflict response.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsUnauthorized reports whether err is a Helix 401 Unauthorized response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// StatusCode returns the HTTP status of a Helix API error, or 0 when err
// did not come from a Helix response.
func StatusCode(err error) int {
	var apiErr *kappopher.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// retryable reports whether a failed call is worth another attempt.
// Transport failures have no status and are retried.
func retryable(err error) bool {
	status := StatusCode(err)
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
