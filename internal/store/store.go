package store

import "context"

// FindRows scans the table and returns every row accepted by match.
func FindRows[T any](ctx context.Context, table Table[T], match func(*T) bool) ([]*T, error) {
	rows, err := table.GetAllRows(ctx)
	if err != nil {
		return nil, err
	}
	var found []*T
	for _, row := range rows {
		if match(row) {
			found = append(found, row)
		}
	}
	return found, nil
}

// FindFirst scans the table and returns the first row accepted by match, or nil.
func FindFirst[T any](ctx context.Context, table Table[T], match func(*T) bool) (*T, error) {
	rows, err := table.GetAllRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if match(row) {
			return row, nil
		}
	}
	return nil, nil
}
