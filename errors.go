package twist

import (
	"errors"
	"fmt"

	"github.com/twistproto/twist/internal/prng"
	"github.com/twistproto/twist/internal/register"
)

// Code is the engine's error taxonomy: invalid-input, resource-exhaustion,
// entropy-starvation, and transient-retry. Malformed or hostile packet
// input is never surfaced this way — it is silently discarded instead.
type Code int

const (
	CodeOK       Code = 0
	CodeInvalid  Code = -1 // bad argument, forged ticket, time regress
	CodeNoMemory Code = -2 // pool, hash, or heap allocation failure
	CodeEntropy  Code = -3 // entropy callback exhausted during PRNG reseed
	CodeAgain    Code = -4 // would-block, register saturated, live connections remain
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalid:
		return "invalid"
	case CodeNoMemory:
		return "no memory"
	case CodeEntropy:
		return "entropy exhausted"
	case CodeAgain:
		return "try again"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is a structured engine error carrying the operation that
// failed, its error code, and an optional wrapped cause.
type Error struct {
	Op    string // e.g. "tick", "recv", "mint"
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Op != "" {
		return fmt.Sprintf("twist: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("twist: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured error for op with the given code and
// message.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps inner with op, preserving its code if it is already a
// structured *Error. Otherwise it classifies known internal sentinels —
// entropy exhaustion during a PRNG reseed maps to CodeEntropy, a
// saturated strike register maps to CodeAgain — and falls back to
// CodeNoMemory, the most common reason an internal call wrapped this
// way would otherwise fail.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var te *Error
	if errors.As(inner, &te) {
		return &Error{Op: op, Code: te.Code, Msg: te.Msg, Inner: te.Inner}
	}
	switch {
	case errors.Is(inner, prng.ErrEntropyExhausted):
		return &Error{Op: op, Code: CodeEntropy, Msg: inner.Error(), Inner: inner}
	case errors.Is(inner, register.ErrSaturated):
		return &Error{Op: op, Code: CodeAgain, Msg: inner.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: CodeNoMemory, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured *Error with the given
// code.
func IsCode(err error, code Code) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}
