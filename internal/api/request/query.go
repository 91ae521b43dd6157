// Package request parses operator API request parameters.
package request

import (
	"fmt"
	"net/http"
	"strconv"
)

// Limit reads the "limit" query parameter. It returns def when absent and
// rejects values outside 1..upper.
func Limit(r *http.Request, def, upper int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > upper {
		return 0, fmt.Errorf("limit must be between 1 and %d", upper)
	}
	return n, nil
}
