package common

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/sirupsen/logrus"
)

// StatusError carries the http status an error should be answered with.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func WithStatus(code int, err error) error {
	return &StatusError{Code: code, Err: err}
}

func ErrorStatus(err error) int {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

// JsonHandler answers with the json encoded result of fn, or with an error
// body and the status ErrorStatus picks for the returned error.
func JsonHandler(trk types.Tracking, fn func(w http.ResponseWriter, r *http.Request, sessionId string) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			RespondToOptions(w, r)
			return
		}
		sessionId := HandleSessionCookie(trk, w, r)

		result, err := fn(w, r, sessionId)
		if err != nil {
			status := ErrorStatus(err)
			if status >= http.StatusInternalServerError {
				logrus.Errorf("error handling %s %s: %v", r.Method, r.URL.Path, err)
			}
			WriteJson(w, status, errorResponse{Error: err.Error()})
			return
		}
		WriteJson(w, http.StatusOK, result)
	}
}

func WriteJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(value); err != nil {
		logrus.Warnf("could not write response: %v", err)
	}
}

// DecodeJson reads a json request body into v.
func DecodeJson(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(v); err != nil {
		return WithStatus(http.StatusBadRequest, err)
	}
	return nil
}

func RespondToOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	origin := r.Header.Get("Origin")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Age", "0")
	w.WriteHeader(http.StatusAccepted)
}
