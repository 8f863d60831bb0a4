package worker

import "errors"

// ErrNoContent is the single content-error signal: extraction or chunking
// produced zero persistable chunks, regardless of which stage was at
// fault. The task fails and is not retried; only new input can fix it.
var ErrNoContent = errors.New("no content: zero chunks produced")

// ErrTaskTimeout marks a task that exceeded its wall-clock ceiling.
var ErrTaskTimeout = errors.New("task exceeded wall-clock timeout")
