package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// ErrorRecorder accepts failed responses for async persistence.
// Record must never block the request path.
type ErrorRecorder interface {
	Record(status int, code string, message string, path string)
}

// Keeps middleware from buffering huge error bodies
const maxErrorBodyBytes = 4 << 10

type errorWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *errorWriter) Write(p []byte) (int, error) {
	if w.status >= http.StatusBadRequest && w.body.Len() < maxErrorBodyBytes {
		w.body.Write(p[:min(len(p), maxErrorBodyBytes-w.body.Len())])
	}
	return w.ResponseWriter.Write(p)
}

func (w *errorWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// ErrorLog forwards every 4xx/5xx response to the recorder, pulling the
// error code and message out of the response envelope when possible
func ErrorLog(rec ErrorRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ew := &errorWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ew, r)

			if ew.status < http.StatusBadRequest {
				return
			}

			var envelope struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			_ = json.Unmarshal(ew.body.Bytes(), &envelope)

			rec.Record(ew.status, envelope.Error.Code, envelope.Error.Message, r.URL.Path)
		})
	}
}
