package snap

import "fmt"

// KeyLoadError indicates RSA key material is missing or unreadable.
// It is fatal for the call and never retried.
type KeyLoadError struct {
	Source string // file path or "inline PEM"
	Err    error
}

func (e *KeyLoadError) Error() string {
	return fmt.Sprintf("snap: cannot load key from %s: %v", e.Source, e.Err)
}

func (e *KeyLoadError) Unwrap() error { return e.Err }

// SigningError indicates the cryptographic signing primitive failed.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("snap: signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// TransportError is returned for network failures and, by default, for
// non-2xx responses. When the response body was received it is attached
// so callers running in pass-through mode can still inspect it.
type TransportError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("snap: request failed: %v", e.Err)
	}
	return fmt.Sprintf("snap: http error: %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }
