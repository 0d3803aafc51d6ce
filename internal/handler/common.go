package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel values used in getMemberID
	"strconv" // strconv converts strings to numeric types
	"time"    // time parses occurrence date parameters

	"github.com/labstack/echo/v4" // echo defines request context types
)

// getMemberID extracts the member_id from echo.Context and converts it to uint64
func getMemberID(c echo.Context) (uint64, error) {
	v := c.Get("member_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid member_id in context")
}

// parseDateParam parses an optional YYYY-MM-DD parameter.  The bool
// reports whether a value was present; an error means it was present
// but malformed.
func parseDateParam(raw string) (time.Time, bool, error) {
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, true, err
	}
	return t.UTC(), true, nil
}
