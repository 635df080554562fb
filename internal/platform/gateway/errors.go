package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCanceled は呼び出しが新しい同一キーの呼び出し、または明示的な Cancel によって中断された場合に返却されます。
	ErrCanceled = errors.New("gateway: request canceled")
	// ErrResponseTooLarge はレスポンスボディが上限サイズを超えた場合に返却されます。
	ErrResponseTooLarge = errors.New("gateway: response too large")

	errSuperseded      = errors.New("superseded by a newer request with the same key")
	errCanceledByOwner = errors.New("canceled by caller")
)

// StatusError は 2xx 以外の HTTP レスポンスを表します。
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e == nil {
		return "gateway: unexpected status"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("gateway: %s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsNotFound は err が 404 の StatusError かどうかを判定します。
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
