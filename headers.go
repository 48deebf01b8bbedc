package h2headers

import (
	"strconv"
	"strings"

	"golang.org/x/net/http2/hpack"
)

const (
	pseudoScheme    = ":scheme"
	pseudoAuthority = ":authority"
	pseudoMethod    = ":method"
	pseudoPath      = ":path"
	pseudoStatus    = ":status"
)

// Request is the typed form of a request header block. Headers holds the
// regular fields only, in wire order; the four pseudo-headers live in their
// own fields. HasBody is false when the block carried END_STREAM.
type Request struct {
	Scheme    string
	Authority string
	Method    string
	Path      string
	Headers   []hpack.HeaderField
	HasBody   bool
}

type Response struct {
	Status  int
	Headers []hpack.HeaderField
	HasBody bool
}

// Trailers always terminate the stream, so EndStream is true on every
// decoded value regardless of the caller's flag.
type Trailers struct {
	Headers   []hpack.HeaderField
	EndStream bool
}

// pseudoSlot is a tagged option: the zero value is "unfilled", which is
// distinct from any header value including the empty string.
type pseudoSlot struct {
	value  string
	filled bool
}

func (s *pseudoSlot) fill(name, value string) error {
	if s.filled {
		return protocolError(ErrCodeRepeatedPseudoHeader, "pseudo-header sent more than once")
	}
	if value == "" {
		return protocolError(ErrCodeEmptyPseudoHeader, name+" must not be empty")
	}
	s.value = value
	s.filled = true
	return nil
}

// DecodeRequest consumes the pseudo-header prefix of fields, then validates
// the remaining regular fields. All four request pseudo-headers must appear
// before any regular field, exactly once each, with non-empty values.
func DecodeRequest(fields []hpack.HeaderField, endStream bool) (*Request, error) {
	var scheme, authority, method, path pseudoSlot
	i := 0
	for ; i < len(fields); i++ {
		hf := fields[i]
		if !hf.IsPseudo() {
			break
		}
		var slot *pseudoSlot
		switch hf.Name {
		case pseudoScheme:
			slot = &scheme
		case pseudoAuthority:
			slot = &authority
		case pseudoMethod:
			slot = &method
		case pseudoPath:
			slot = &path
		default:
			return nil, protocolError(ErrCodeUnknownPseudoHeader, "unacceptable pseudo-header, "+hf.Name)
		}
		if err := slot.fill(hf.Name, hf.Value); err != nil {
			return nil, err
		}
	}
	if !scheme.filled || !authority.filled || !method.filled || !path.filled {
		return nil, protocolError(ErrCodeMissingPseudoHeader, "All pseudo-headers must be sent")
	}
	headers, err := validateFields(fields[i:])
	if err != nil {
		return nil, err
	}
	return &Request{
		Scheme:    scheme.value,
		Authority: authority.value,
		Method:    method.value,
		Path:      path.value,
		Headers:   headers,
		HasBody:   !endStream,
	}, nil
}

// DecodeResponse requires :status as the very first field; everything after
// it is validated as regular headers, so a repeated or late pseudo-header
// fails the same way it does on the request path.
func DecodeResponse(fields []hpack.HeaderField, endStream bool) (*Response, error) {
	if len(fields) == 0 || fields[0].Name != pseudoStatus {
		return nil, protocolError(ErrCodeMissingStatus, "malformed response: missing status pseudo header")
	}
	status, err := parseStatus(fields[0].Value)
	if err != nil {
		return nil, err
	}
	headers, err := validateFields(fields[1:])
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:  status,
		Headers: headers,
		HasBody: !endStream,
	}, nil
}

func DecodeTrailers(fields []hpack.HeaderField) (*Trailers, error) {
	headers, err := validateFields(fields)
	if err != nil {
		return nil, err
	}
	return &Trailers{Headers: headers, EndStream: true}, nil
}

// parseStatus accepts decimal digits only: no sign, no surrounding space,
// no trailing bytes.
func parseStatus(value string) (int, error) {
	if value == "" {
		return 0, protocolError(ErrCodeMalformedStatus, "malformed response: malformed non-numeric status pseudo header")
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return 0, protocolError(ErrCodeMalformedStatus, "malformed response: malformed non-numeric status pseudo header")
		}
	}
	status, err := strconv.Atoi(value)
	if err != nil {
		return 0, protocolError(ErrCodeMalformedStatus, "malformed response: malformed non-numeric status pseudo header")
	}
	return status, nil
}

// validateFields checks the regular fields of a block, in order. Empty
// values are legal here; empty pseudo-header values are not, but those are
// rejected before this point.
func validateFields(fields []hpack.HeaderField) ([]hpack.HeaderField, error) {
	headers := make([]hpack.HeaderField, 0, len(fields))
	for _, hf := range fields {
		switch {
		case hf.IsPseudo():
			return nil, protocolError(ErrCodeMisplacedPseudoHeader, "pseudo-header sent amongst normal headers")
		case hf.Name == "connection":
			return nil, protocolError(ErrCodeConnectionHeader, "connection header must not be used with HTTP/2")
		case hf.Name == "te" && hf.Value != "trailers":
			return nil, protocolError(ErrCodeBadTEValue, "TE header field with any value other than 'trailers' is invalid")
		case hf.Name != strings.ToLower(hf.Name):
			return nil, protocolError(ErrCodeUpperCaseHeader, "headers must be lower case")
		}
		headers = append(headers, hf)
	}
	return headers, nil
}

// EncodeRequest prepends the pseudo-header block in canonical order. No
// validation: the caller is a trusted producer.
func EncodeRequest(req *Request) []hpack.HeaderField {
	fields := make([]hpack.HeaderField, 0, len(req.Headers)+4)
	fields = append(fields,
		hpack.HeaderField{Name: pseudoScheme, Value: req.Scheme},
		hpack.HeaderField{Name: pseudoAuthority, Value: req.Authority},
		hpack.HeaderField{Name: pseudoMethod, Value: req.Method},
		hpack.HeaderField{Name: pseudoPath, Value: req.Path},
	)
	return append(fields, req.Headers...)
}

func EncodeResponse(resp *Response) []hpack.HeaderField {
	fields := make([]hpack.HeaderField, 0, len(resp.Headers)+1)
	fields = append(fields, hpack.HeaderField{Name: pseudoStatus, Value: strconv.Itoa(resp.Status)})
	return append(fields, resp.Headers...)
}
