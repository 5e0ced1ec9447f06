package chatclient

import "errors"

// ErrSendTimeout marks a send that never got an acknowledgment within the
// timeout; the speculative message flips to failed and can be retried.
var ErrSendTimeout = errors.New("send timed out waiting for acknowledgment")
