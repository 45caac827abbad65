package volatility

import "errors"

// ErrInvalidPeriod is returned when the window is too small for the estimator.
var ErrInvalidPeriod = errors.New("invalid period")
