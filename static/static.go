// Package static provides the dashboard single page application bundled
// into the binary.
package static

import "errors"

// ErrNotEmbedded is returned when the binary was built without the dashboard.
var ErrNotEmbedded = errors.New("dashboard not embedded in this build")
