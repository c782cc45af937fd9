package api

import (
	"net/http"
	"strconv"
)

// pageParams extracts page/perPage query parameters with defaults
func pageParams(r *http.Request) (page, perPage int) {
	page = queryInt(r, "page", 1)
	perPage = queryInt(r, "perPage", 50)
	return page, perPage
}

// queryInt parses an integer query parameter, returning def when absent
// or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
