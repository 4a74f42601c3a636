package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// SnapshotTableKey returns <prefix>/<table>.parquet.
func SnapshotTableKey(prefix, table string) (string, error) {
	if err := validatePathComponent(table, "table name"); err != nil {
		return "", err
	}
	return joinPrefix(prefix, table+".parquet")
}

// OutcomeKey returns <prefix>/YYYY/MM/DD/<id>.json for the UTC day of at.
func OutcomeKey(prefix string, at time.Time, id string) (string, error) {
	if err := validatePathComponent(id, "outcome id"); err != nil {
		return "", err
	}
	ts := at.UTC()
	return joinPrefix(prefix, path.Join(
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", ts.Month()),
		fmt.Sprintf("%02d", ts.Day()),
		id+".json",
	))
}

func joinPrefix(prefix, rest string) (string, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return rest, nil
	}
	for _, part := range strings.Split(prefix, "/") {
		if err := validatePathComponent(part, "prefix component"); err != nil {
			return "", err
		}
	}
	return path.Join(prefix, rest), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
