package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vedran77/relay/internal/client"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// Unwrap lets callers test with errors.Is(err, client.ErrNotFound).
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return client.ErrNotFound
	case http.StatusForbidden:
		return client.ErrForbidden
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

// authError classifies a failed register or login call.
func authError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return &client.AuthError{Kind: client.AuthOther, Err: err}
	}
	switch apiErr.Code {
	case "EMAIL_TAKEN":
		return &client.AuthError{Kind: client.AuthEmailInUse, Err: err}
	case "INVALID_CREDENTIALS":
		return &client.AuthError{Kind: client.AuthInvalidCredentials, Err: err}
	}
	return &client.AuthError{Kind: client.AuthOther, Err: err}
}
