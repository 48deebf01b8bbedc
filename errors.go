package h2headers

import "errors"

type ErrCode uint8

const (
	ErrCodeEmptyPseudoHeader ErrCode = iota + 1
	ErrCodeRepeatedPseudoHeader
	ErrCodeUnknownPseudoHeader
	ErrCodeMissingPseudoHeader
	ErrCodeMisplacedPseudoHeader
	ErrCodeConnectionHeader
	ErrCodeBadTEValue
	ErrCodeUpperCaseHeader
	ErrCodeMissingStatus
	ErrCodeMalformedStatus
)

// ProtocolError reports a header block that violates the HTTP/2 header
// rules. Message is the wire-diagnostic text; Code identifies the rule
// without parsing it.
type ProtocolError struct {
	Message string
	Code    ErrCode
}

func (obj *ProtocolError) Error() string {
	return obj.Message
}

func protocolError(code ErrCode, message string) *ProtocolError {
	return &ProtocolError{Code: code, Message: message}
}

func IsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
