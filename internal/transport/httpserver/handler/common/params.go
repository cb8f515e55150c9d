package common

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"family-ledger-go/internal/cache"
	"family-ledger-go/internal/domain/ledger"
)

const DateLayout = "2006-01-02"

func ParseDateParam(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseRange reads from/to. Both or neither must be set, and from may not
// come after to.
func ParseRange(r *http.Request) (ledger.Range, error) {
	from, err := ParseDateParam(r.URL.Query().Get("from"))
	if err != nil {
		return ledger.Range{}, ledger.NewValidationError("from must be YYYY-MM-DD", "from")
	}
	to, err := ParseDateParam(r.URL.Query().Get("to"))
	if err != nil {
		return ledger.Range{}, ledger.NewValidationError("to must be YYYY-MM-DD", "to")
	}
	if (from == nil) != (to == nil) {
		return ledger.Range{}, ledger.NewValidationError("from and to must be set together", "from", "to")
	}
	if from == nil {
		return ledger.Range{}, nil
	}
	if from.After(*to) {
		return ledger.Range{}, ledger.NewValidationError("from must not be after to", "from", "to")
	}
	return ledger.Range{From: *from, To: *to}, nil
}

// ParseListFilter reads the gateway list filters from the query string.
func ParseListFilter(r *http.Request) (ledger.ListFilter, error) {
	dates, err := ParseRange(r)
	if err != nil {
		return ledger.ListFilter{}, err
	}
	query := r.URL.Query()
	filter := ledger.FilterForRange(dates)
	filter.Category = strings.TrimSpace(query.Get("category"))
	filter.User = strings.TrimSpace(query.Get("user"))
	if status := strings.TrimSpace(query.Get("status")); status != "" {
		filter.Status = ledger.Status(status)
		if !filter.Status.Valid() {
			return ledger.ListFilter{}, ledger.NewValidationError(fmt.Sprintf("unknown status %q", status), "status")
		}
	}
	return filter, nil
}

func ParseCSV(value string) []string {
	parts := strings.Split(value, ",")
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

func ParseIntParam(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid int")
	}
	return parsed, nil
}

// RequestMount ties a cache mount to the request; results that arrive after
// the client went away are dropped.
func RequestMount(r *http.Request) *cache.Mount {
	mount := cache.NewMount()
	context.AfterFunc(r.Context(), mount.Unmount)
	return mount
}
