package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	apperrors "github.com/swingfinder/festival-finder/pkg/errors"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperrors.ErrorType
	}{
		{"deadline", context.DeadlineExceeded, apperrors.ErrorTypeUnavailable},
		{"wrapped deadline", fmt.Errorf("count: %w", context.DeadlineExceeded), apperrors.ErrorTypeUnavailable},
		{"bad conn", driver.ErrBadConn, apperrors.ErrorTypeUnavailable},
		{"conn done", sql.ErrConnDone, apperrors.ErrorTypeUnavailable},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, apperrors.ErrorTypeUnavailable},
		{"too many clients", &pq.Error{Code: "53300", Message: "sorry, too many clients already"}, apperrors.ErrorTypeUnavailable},
		{"connection failure", &pq.Error{Code: "08006"}, apperrors.ErrorTypeUnavailable},
		{"shutdown", &pq.Error{Code: "57P01"}, apperrors.ErrorTypeUnavailable},
		{"statement timeout", &pq.Error{Code: "57014"}, apperrors.ErrorTypeUnavailable},
		{"pooler message", errors.New("FATAL: too many connections for role"), apperrors.ErrorTypeUnavailable},
		{"syntax error", &pq.Error{Code: "42601"}, apperrors.ErrorTypeInternal},
		{"undefined column", &pq.Error{Code: "42703"}, apperrors.ErrorTypeInternal},
		{"scan", errors.New("sql: Scan error on column index 3"), apperrors.ErrorTypeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("search failed", tc.err)
			assert.Equal(t, tc.want, apperrors.TypeOf(err))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestClassify_KeepsExistingType(t *testing.T) {
	original := apperrors.NewValidationError("bad input")
	assert.Same(t, original, classify("search failed", original))
}
