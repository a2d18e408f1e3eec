package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUIDArray maps a postgres uuid[] column. On sqlite the same array literal is kept as text.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	parts, err := scanArrayLiteral(src)
	if err != nil {
		return fmt.Errorf("UUIDArray: %w", err)
	}
	out := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return fmt.Errorf("UUIDArray: parse %q: %w", p, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}

func (a UUIDArray) Value() (driver.Value, error) {
	parts := make([]string, 0, len(a))
	for _, id := range a {
		parts = append(parts, id.String())
	}
	return arrayLiteral(parts), nil
}

// Contains reports whether id is present.
func (a UUIDArray) Contains(id uuid.UUID) bool {
	for _, candidate := range a {
		if candidate == id {
			return true
		}
	}
	return false
}

// StringArray maps a postgres text[] column holding simple tokens (no commas or quotes).
type StringArray []string

func (a *StringArray) Scan(src any) error {
	parts, err := scanArrayLiteral(src)
	if err != nil {
		return fmt.Errorf("StringArray: %w", err)
	}
	*a = parts
	return nil
}

func (a StringArray) Value() (driver.Value, error) {
	return arrayLiteral(a), nil
}

func arrayLiteral(parts []string) string {
	return "{" + strings.Join(parts, ",") + "}"
}

func scanArrayLiteral(src any) ([]string, error) {
	var s string
	switch v := src.(type) {
	case nil:
		return []string{}, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return nil, fmt.Errorf("unsupported Scan type %T", src)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if strings.TrimSpace(s) == "" {
		return []string{}, nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, strings.TrimSpace(strings.Trim(r, `"`)))
	}
	return out, nil
}
