package factor

import "errors"

// ErrUndefinedFactor is returned when a factor weight references a factor
// name that was never computed. This is a configuration error and aborts
// the run before any exchange interaction.
var ErrUndefinedFactor = errors.New("undefined factor")
