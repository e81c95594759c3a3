/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSort is returned for malformed ordering expressions.
var ErrInvalidSort = errors.New("invalid sort expression")

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// SortDirection is the direction of one sort key.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

var _ BaseEnum = Ascending

func (d SortDirection) IsValid() bool { return d == Ascending || d == Descending }

func (d SortDirection) Number() int {
	if !d.IsValid() {
		return IllegalValue
	}
	return int(d)
}

// String returns the SQL keyword.
func (d SortDirection) String() string {
	switch d {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return IllegalName
	}
}

func (d SortDirection) Name() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return IllegalName
	}
}

func (d SortDirection) Desc() string {
	switch d {
	case Ascending:
		return "smallest value first"
	case Descending:
		return "largest value first"
	default:
		return IllegalDesc
	}
}

// SortKey orders results by one field. Field may be a dotted path.
type SortKey struct {
	Field     string
	Direction SortDirection
}

func (k SortKey) String() string {
	return k.Field + " " + k.Direction.String()
}

// ParseSort parses "field [asc|desc][, field [asc|desc]...]". The direction
// is case-insensitive and defaults to ascending; "ascending"/"descending" are
// accepted too. Fields are identifiers, optionally joined by dots. An empty
// expression yields no keys.
func ParseSort(expr string) ([]SortKey, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	items := strings.Split(expr, ",")
	keys := make([]SortKey, 0, len(items))
	for i, item := range items {
		parts := strings.Fields(item)
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: empty key at position %d", ErrInvalidSort, i+1)
		}
		if len(parts) > 2 {
			return nil, fmt.Errorf("%w: unexpected %q after %q", ErrInvalidSort, parts[2], parts[1])
		}
		if !isFieldPath(parts[0]) {
			return nil, fmt.Errorf("%w: bad field name %q", ErrInvalidSort, parts[0])
		}
		key := SortKey{Field: parts[0], Direction: Ascending}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc", "ascending":
			case "desc", "descending":
				key.Direction = Descending
			default:
				return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidSort, parts[1])
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func isFieldPath(s string) bool {
	for _, seg := range strings.Split(s, ".") {
		if !isIdent(seg) {
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
