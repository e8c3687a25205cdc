package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
	apperrors "github.com/swingfinder/festival-finder/pkg/errors"
)

// unavailableClasses are the SQLSTATE classes meaning the server cannot
// serve the request right now: connection exceptions and insufficient
// resources.
var unavailableClasses = map[pq.ErrorClass]bool{
	"08": true,
	"53": true,
}

// unavailableCodes are individual SQLSTATEs from the operator
// intervention class that mean the server is going away or restarting.
var unavailableCodes = map[pq.ErrorCode]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"57014": true, // query_canceled (statement_timeout)
}

// isUnavailable reports whether err means the database could not be
// reached, was exhausted or timed out.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return unavailableClasses[pqErr.Code.Class()] || unavailableCodes[pqErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many connections") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

// classify wraps a failed search round trip as an unavailable or
// internal AppError. Errors that already carry a type pass through.
func classify(message string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isUnavailable(err) {
		return apperrors.NewUnavailableError(message, err)
	}
	return apperrors.NewInternalError(message, err)
}
