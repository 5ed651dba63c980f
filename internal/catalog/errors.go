package catalog

import "github.com/cewkb/kbsearch/internal/errors"

// ErrClosed is returned by Refresh and Replace after Close.
var ErrClosed = errors.Unavailable("catalog closed")
