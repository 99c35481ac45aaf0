package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("catalog: service not found")
	ErrBadDuration = errors.New("catalog: malformed duration")
)

const unknownDisplayName = "unknown service"

// Snapshot is the set of catalog attributes cached into a cart line at
// resolution time. It may go stale if the catalog changes afterwards;
// ResolvedAt lets consumers decide to re-resolve.
type Snapshot struct {
	ServiceID       string
	DisplayName     string
	UnitPrice       int64 // cents
	DurationSeconds int64
	ImageRef        string
	Available       bool
	ResolvedAt      time.Time
}

// Resolver looks up the current catalog attributes of a service.
type Resolver interface {
	Resolve(ctx context.Context, serviceID string) (Snapshot, error)
}

// Unknown is the sentinel snapshot kept in place of a failed lookup: the
// line stays visible and actionable but contributes nothing to totals and
// flags the cart as holding an unavailable item.
func Unknown(serviceID string) Snapshot {
	return Snapshot{
		ServiceID:   serviceID,
		DisplayName: unknownDisplayName,
		Available:   false,
		ResolvedAt:  time.Now().UTC(),
	}
}

// IsUnknown reports whether the snapshot is the failed-lookup sentinel.
func (s Snapshot) IsUnknown() bool {
	return s.DisplayName == unknownDisplayName && s.UnitPrice == 0 && s.DurationSeconds == 0 && !s.Available
}

// IsStale reports whether the snapshot is older than maxAge at now.
func (s Snapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	if s.ResolvedAt.IsZero() {
		return true
	}
	return now.Sub(s.ResolvedAt) > maxAge
}

// ParseDuration converts the catalog's "HH:MM" (optionally "HH:MM:SS")
// duration string to seconds. Seconds are the internal unit; formatting back
// for display is a presentation concern.
func ParseDuration(raw string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, raw)
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, raw)
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return total, nil
}

// FormatDuration renders seconds back to "HH:MM" for wire compatibility.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/3600, (seconds%3600)/60)
}
