// Package apperr definiert die Fehler-Taxonomie beider Services.
//
// Services liefern ausschließlich *Error (ggf. verschachtelt) nach außen; Handler
// übersetzen sie über HTTPStatus in eine Antwort.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind klassifiziert einen Fehler.
type Kind string

const (
	KindNotFound                 Kind = "not_found"
	KindInvalidInput             Kind = "invalid_input"
	KindAlreadyExists            Kind = "already_exists"
	KindRemoteServiceUnavailable Kind = "remote_service_unavailable"
	KindRemoteOperationFailed    Kind = "remote_operation_failed"
	KindCannotDelete             Kind = "cannot_delete"
	KindInternal                 Kind = "internal"
)

// Error ist ein klassifizierter Fehler mit optionaler Ursache.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// NotFound meldet eine unbekannte Entität.
func NotFound(resource string, id any) *Error {
	return newError(KindNotFound, nil, "%s %v not found", resource, id)
}

// InvalidInput meldet fehlende oder ungültige Eingaben.
func InvalidInput(format string, args ...any) *Error {
	return newError(KindInvalidInput, nil, format, args...)
}

// AlreadyExists meldet eine doppelte Zuordnung.
func AlreadyExists(format string, args ...any) *Error {
	return newError(KindAlreadyExists, nil, format, args...)
}

// RemoteUnavailable meldet einen nicht erreichbaren oder 5xx liefernden Nachbar-Service.
func RemoteUnavailable(cause error, format string, args ...any) *Error {
	return newError(KindRemoteServiceUnavailable, cause, format, args...)
}

// RemoteFailed meldet eine abgelehnte Anfrage an den Nachbar-Service.
func RemoteFailed(status int, format string, args ...any) *Error {
	return newError(KindRemoteOperationFailed, nil, "%s (status %d)", fmt.Sprintf(format, args...), status)
}

// CannotDelete fasst jeden Fehler einer Kaskaden-Löschung zusammen.
func CannotDelete(resource string, id any, cause error) *Error {
	return newError(KindCannotDelete, cause, "cannot delete %s %v", resource, id)
}

// Internal verpackt Infrastrukturfehler (Datenbank etc.).
func Internal(cause error, format string, args ...any) *Error {
	return newError(KindInternal, cause, format, args...)
}

// KindOf liefert die Art des äußersten *Error in der Kette, sonst KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HasKind prüft die gesamte Kette, auch unterhalb eines äußeren *Error.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// HTTPStatus bildet einen Fehler auf einen Statuscode ab. Ein Ausfall des
// Nachbar-Service bleibt auch innerhalb von CannotDelete als 5xx erkennbar.
func HTTPStatus(err error) int {
	switch {
	case HasKind(err, KindRemoteServiceUnavailable):
		return http.StatusServiceUnavailable
	case HasKind(err, KindRemoteOperationFailed):
		return http.StatusBadGateway
	}
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindAlreadyExists, KindCannotDelete:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromRemoteStatus klassifiziert eine Nicht-200-Antwort des Nachbar-Service:
// 5xx gilt als Ausfall, alles andere als abgelehnte Operation.
func FromRemoteStatus(status int, body string, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	if status >= http.StatusInternalServerError {
		return newError(KindRemoteServiceUnavailable, nil, "%s (status %d)", msg, status)
	}
	return RemoteFailed(status, "%s", msg)
}
