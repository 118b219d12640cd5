package github

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/devbush/submanager/internal/domain"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	RateLimit  *domain.RateLimitWindow
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is maps status codes onto the domain sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case domain.ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case domain.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

func newAPIError(method, path string, resp *http.Response) *APIError {
	defer resp.Body.Close()

	e := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}

	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if json.Unmarshal(data, &body) == nil {
		e.Message = body.Message
	}
	return e
}
