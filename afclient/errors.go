package afclient

import "errors"

// ErrClosed is returned by writes after [Client.Close].
var ErrClosed = errors.New("client closed")
