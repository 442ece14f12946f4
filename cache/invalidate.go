package cache

import (
	"context"
	"regexp"
	"strings"
)

// Invalidate deletes every key containing pattern as a substring and
// returns how many entries were removed. Memoized functions use their name
// as the key prefix, so Invalidate(ctx, c, "patients") drops everything the
// "patients" function cached.
func Invalidate(ctx context.Context, c Cache, pattern string) (int, error) {
	return invalidate(ctx, c, func(key string) bool {
		return strings.Contains(key, pattern)
	})
}

// InvalidateMatch deletes every key matching re and returns how many
// entries were removed.
func InvalidateMatch(ctx context.Context, c Cache, re *regexp.Regexp) (int, error) {
	return invalidate(ctx, c, re.MatchString)
}

func invalidate(ctx context.Context, c Cache, match func(string) bool) (int, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}
	var removed int
	for _, key := range keys {
		if !match(key) {
			continue
		}
		ok, err := c.Delete(ctx, key)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
