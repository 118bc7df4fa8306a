package filters

import (
	"strconv"

	"ec2emulator/errors"
)

const (
	// DefaultPageSize is used when neither the caller nor the configuration set one.
	DefaultPageSize = 100
	// MaxPageSize is the largest MaxResults a Describe call accepts.
	MaxPageSize = 1000
)

// Page is the pagination part of a request. MaxResults 0 means unset.
type Page struct {
	MaxResults int
	NextToken  string
}

// Paginate slices items from the offset encoded in page.NextToken. The returned token
// is empty when no records remain after the page.
func Paginate[T any](items []T, page Page, defaultSize int) ([]T, string, error) {
	size := page.MaxResults
	if size < 0 {
		return nil, "", errors.InvalidValue("MaxResults", strconv.Itoa(size), "MaxResults must be positive.")
	}
	if size == 0 {
		size = defaultSize
	}
	if size <= 0 {
		size = DefaultPageSize
	}

	offset := 0
	if page.NextToken != "" {
		n, err := strconv.Atoi(page.NextToken)
		if err != nil || n < 0 {
			return nil, "", errors.InvalidValue("NextToken", page.NextToken, "The token is not valid.")
		}
		offset = n
	}
	if offset >= len(items) {
		return []T{}, "", nil
	}

	if size >= len(items)-offset {
		return items[offset:], "", nil
	}
	end := offset + size
	return items[offset:end], strconv.Itoa(end), nil
}
