package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Capabilities records optional schema features detected at startup. Older
// deployments lack the inspections.inspection_type column.
type Capabilities struct {
	InspectionType bool
}

// ProbeSchema inspects the live schema instead of reacting to "no such column"
// errors at query time.
func ProbeSchema(ctx context.Context, db *sql.DB) (Capabilities, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, "inspections")
	if err != nil {
		return Capabilities{}, fmt.Errorf("failed to probe schema: %w", err)
	}
	defer rows.Close()

	var caps Capabilities
	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Capabilities{}, fmt.Errorf("failed to scan column: %w", err)
		}
		found = true
		if name == "inspection_type" {
			caps.InspectionType = true
		}
	}
	if err := rows.Err(); err != nil {
		return Capabilities{}, fmt.Errorf("error iterating columns: %w", err)
	}
	if !found {
		return Capabilities{}, fmt.Errorf("inspections table does not exist")
	}
	return caps, nil
}

func encodeURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeURLs(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, nil
	}
	return urls, nil
}
