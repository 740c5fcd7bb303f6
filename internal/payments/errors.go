package payments

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfiguration    Kind = "configuration"
	KindExchangeRate     Kind = "exchange_rate_unavailable"
	KindAuthentication   Kind = "authentication"
	KindProviderRejected Kind = "provider_rejected"
	KindNotFound         Kind = "not_found"
	KindNetwork          Kind = "network"
	KindValidation       Kind = "validation"
)

// Error is the typed failure surfaced by checkout and webhook processing.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func configError(provider, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

func authError(provider, msg string) *Error {
	return &Error{Kind: KindAuthentication, Provider: provider, Message: msg}
}

func validationError(provider, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

func rejected(provider, msg string) *Error {
	return &Error{Kind: KindProviderRejected, Provider: provider, Message: msg}
}

func networkError(provider string, err error) *Error {
	return &Error{Kind: KindNetwork, Provider: provider, Message: "provider unreachable", Err: err}
}

func notFound(provider, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Provider: provider, Message: fmt.Sprintf(format, args...)}
}
