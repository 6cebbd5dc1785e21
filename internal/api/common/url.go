package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
)

// GetAndValidateURLParam returns the unescaped chi path parameter name. Scoped
// app names arrive escaped ("%40shop%2Fcheckout"). Blank values and values
// holding whitespace are rejected.
func GetAndValidateURLParam(r *http.Request, name string) (string, error) {
	value, err := url.PathUnescape(chi.URLParam(r, name))
	switch {
	case err != nil:
		return "", fmt.Errorf("invalid URL encoding in %s", name)
	case strings.TrimSpace(value) == "":
		return "", fmt.Errorf("%s cannot be empty", name)
	case strings.IndexFunc(value, unicode.IsSpace) >= 0:
		return "", fmt.Errorf("%s cannot contain whitespace", name)
	}
	return value, nil
}
