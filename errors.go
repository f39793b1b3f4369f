package beacon

import "errors"

// Sentinel errors
var (
	ErrFrameLen         = errors.New("invalid frame len")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrInvalidLen       = errors.New("invalid len")
	ErrInvalidInterface = errors.New("interface name is invalid")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrTimeout          = errors.New("timeout")
)
