package async

import "errors"

var ErrPanicked = errors.New("async: function panicked")
