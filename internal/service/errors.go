package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
)

// storeError classifies a repository failure. Connectivity problems surface
// as UNAVAILABLE so callers know a retry may succeed; everything else is an
// internal error. Policy and validation failures never reach this path.
func storeError(err error, message string) *appErrors.Error {
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
