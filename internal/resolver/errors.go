package resolver

import "errors"

var (
	ErrEmptyInput = errors.New("empty input")
	// ErrTransport means no candidate endpoint produced a response.
	ErrTransport = errors.New("transport failure")
	// ErrFormat means a response lacked the expected embedded JSON or it
	// did not parse.
	ErrFormat = errors.New("unexpected response format")
	// ErrNotFound covers well-formed negative answers.
	ErrNotFound = errors.New("no matching record")
	ErrStoreIO  = errors.New("cache store failure")
	ErrInternal = errors.New("internal error")
)

// Kind values carried by Result.Kind.
const (
	KindEmptyInput = "empty_input"
	KindTransport  = "transport"
	KindFormat     = "format"
	KindNotFound   = "not_found"
	KindStoreIO    = "store_io"
	KindInternal   = "internal"
)

// Kind classifies err into one of the stable Kind strings. A nil error has
// no kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return KindEmptyInput
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStoreIO):
		return KindStoreIO
	}
	return KindInternal
}
