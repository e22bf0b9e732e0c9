package posconfig

import "errors"

// Reason classifies why a fragment could not be decoded.
type Reason int

const (
	ReasonEmpty Reason = iota + 1
	ReasonEncoding
	ReasonSyntax
	ReasonFieldType
	ReasonDescriptor
	ReasonCurrency
)

// ErrInvalid is matched by every *DecodeError via errors.Is.
var ErrInvalid = errors.New("invalid pos configuration")

// DecodeError reports a fragment that failed decoding or structural checks.
type DecodeError struct {
	Reason Reason
	Err    error
}

func (e *DecodeError) Error() string {
	msg := e.Reason.String()
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets callers match any decode failure with errors.Is(err, ErrInvalid).
func (e *DecodeError) Is(target error) bool { return target == ErrInvalid }

func (r Reason) String() string {
	switch r {
	case ReasonEmpty:
		return "empty configuration"
	case ReasonEncoding:
		return "configuration is not valid base64url"
	case ReasonSyntax:
		return "configuration is not a valid record"
	case ReasonFieldType:
		return "configuration has a field of the wrong type"
	case ReasonDescriptor:
		return "descriptor is missing or too short"
	case ReasonCurrency:
		return "currency must be a 3-letter code"
	default:
		return "invalid configuration"
	}
}
