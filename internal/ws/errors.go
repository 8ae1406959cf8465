package ws

import "errors"

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrWriteTimeout = errors.New("write timeout")
	ErrNilConn      = errors.New("connection cannot be nil")
)
