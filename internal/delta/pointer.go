package delta

import (
	"fmt"
	"strconv"

	"github.com/go-openapi/jsonpointer"
)

// appendToken is the RFC 6901 token addressing the slot past the end of an
// array.
const appendToken = "-"

// parsePath splits a JSON Pointer into unescaped reference tokens.
// The empty pointer addresses the root and yields no tokens.
func parsePath(path string) ([]string, error) {
	ptr, err := jsonpointer.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPath, path, err)
	}
	return ptr.DecodedTokens(), nil
}

// childPath extends a pointer by one escaped token.
func childPath(parent, token string) string {
	return parent + "/" + jsonpointer.Escape(token)
}

// indexPath extends a pointer by an array index.
func indexPath(parent string, i int) string {
	return parent + "/" + strconv.Itoa(i)
}

// parseIndex resolves an array token against an array of length n.
// "-" resolves to n. Leading zeros and signs are rejected as in RFC 6901.
func parseIndex(token string, n int) (int, error) {
	if token == appendToken {
		return n, nil
	}
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, fmt.Errorf("%w: bad array index %q", ErrInvalidPath, token)
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: bad array index %q", ErrInvalidPath, token)
		}
	}
	i, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: bad array index %q", ErrInvalidPath, token)
	}
	return i, nil
}
