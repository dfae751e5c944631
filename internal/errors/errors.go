// Package errors contains the error handling used by eventsync. Errors carry
// the operation that failed and a Kind that callers can branch on without
// string matching.
package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
)

// Error is a domain error. Some of the fields may be left unset.
type Error struct {
	// Op is the operation being performed, e.g. "wizkids.Fetch".
	Op Op
	// Location is the city being processed, if any.
	Location string
	// Kind is the class of error, or Other if its class is unknown.
	Kind Kind
	// Err is the underlying error that triggered this one, if any.
	Err error
}

func (e *Error) isZero() bool {
	return e.Op == "" && e.Location == "" && e.Kind == 0 && e.Err == nil
}

// Op describes an operation, usually a package-qualified function name.
type Op string

// Loc tags an error with the city being processed.
type Loc string

// Kind defines the kind of error.
type Kind int

const (
	Other            Kind = iota // Unclassified. Not printed in the error message.
	Invalid                      // Invalid configuration or input.
	LocationNotFound             // Geocoder had no match.
	RemoteFetch                  // Store-event endpoint or geocoder transport, status or shape.
	Auth                         // Calendar authorization failed.
	DateParse                    // Event start did not match the expected layout.
	CalendarAPI                  // Calendar service call failed.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Invalid:
		return "invalid input"
	case LocationNotFound:
		return "location not found"
	case RemoteFetch:
		return "remote fetch failed"
	case Auth:
		return "authorization failed"
	case DateParse:
		return "bad event date"
	case CalendarAPI:
		return "calendar api error"
	}
	return "unknown error kind"
}

// E builds an error value from its arguments.
// There must be at least one argument or E panics.
// The type of each argument determines its meaning:
//
//	Op      the operation
//	Loc     the city being processed
//	Kind    the class of error
//	string  treated as an error message
//	error   the underlying error
//
// If more than one argument of a given type is presented, only the last one
// is recorded. If Kind is not specified or Other, it is pulled up from the
// underlying error.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("call to errors.E with no arguments")
	}
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Loc:
			e.Location = string(arg)
		case string:
			e.Err = Str(arg)
		case Kind:
			e.Kind = arg
		case *Error:
			copy := *arg
			e.Err = &copy
		case error:
			e.Err = arg
		default:
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	// Suppress duplications so the message won't contain the same
	// location or kind twice.
	if prev.Location == e.Location {
		prev.Location = ""
	}
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}
	return e
}

func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Op != "" {
		b.WriteString(string(e.Op))
	}
	if e.Location != "" {
		pad(b, ", ")
		b.WriteString("location ")
		b.WriteString(e.Location)
	}
	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if prevErr, ok := e.Err.(*Error); ok {
			if !prevErr.isZero() {
				pad(b, ": ")
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Unwrap returns the underlying error so the standard library's errors.Is
// and errors.As can see through an *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Str returns an error that formats as the given text. It is intended to
// be used as the error-typed argument to the E function.
func Str(text string) error {
	return &errorString{text}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf is equivalent to fmt.Errorf, but allows clients to import only this
// package for all error handling.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Is reports whether err is, or wraps, an *Error of the given Kind.
// If err is nil then Is returns false.
func Is(kind Kind, err error) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		return Is(kind, e.Err)
	}
	return false
}

// KindOf returns the Kind of err, or Other if err carries none.
func KindOf(err error) Kind {
	var e *Error
	for stderrors.As(err, &e) {
		if e.Kind != Other {
			return e.Kind
		}
		err = e.Err
	}
	return Other
}

// Match compares its two error arguments. It can be used to check
// for expected errors in tests. Both arguments must have underlying
// type *Error or Match will return false. Otherwise it returns true
// iff every non-zero element of the first error is equal to the
// corresponding element of the second.
// If the Err field is a *Error, Match recurs on that field;
// otherwise it compares the strings returned by the Error methods.
func Match(err1, err2 error) bool {
	e1, ok := err1.(*Error)
	if !ok {
		return false
	}
	e2, ok := err2.(*Error)
	if !ok {
		return false
	}
	if e1.Op != "" && e2.Op != e1.Op {
		return false
	}
	if e1.Location != "" && e2.Location != e1.Location {
		return false
	}
	if e1.Kind != Other && e2.Kind != e1.Kind {
		return false
	}
	if e1.Err != nil {
		if _, ok := e1.Err.(*Error); ok {
			return Match(e1.Err, e2.Err)
		}
		if e2.Err == nil || e2.Err.Error() != e1.Err.Error() {
			return false
		}
	}
	return true
}
