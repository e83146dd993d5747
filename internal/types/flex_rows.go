// flex_rows.go
//
// Mobile push notification relay for self-hosted servers
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of push-bouncer.
// push-bouncer is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// push-bouncer is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with push-bouncer.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package types

import (
	"encoding/json"
)

// FlexRows is a slice that can be unmarshaled from either a JSON array or
// a JSON string containing an encoded array. Remote servers historically
// submit analytics tables as JSON-encoded strings inside the request
// body, so both shapes must be accepted.
type FlexRows[T any] []T

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexRows[T]) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	// If it starts with '"', the payload is a JSON-encoded string holding
	// the actual array.
	if data[0] == '"' {
		var embedded string
		if err := json.Unmarshal(data, &embedded); err != nil {
			return err
		}
		data = []byte(embedded)
	}

	var slice []T
	if err := json.Unmarshal(data, &slice); err != nil {
		return err
	}
	*f = FlexRows[T](slice)
	return nil
}

// Slice converts FlexRows[T] back to []T.
func (f FlexRows[T]) Slice() []T {
	return []T(f)
}

// FlexString is a string that can be unmarshaled from either a bare JSON
// string or a doubly-encoded one ("\"8.0\"").
type FlexString string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	// Unwrap one more level of encoding when present.
	if len(s) >= 2 && s[0] == '"' {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			s = inner
		}
	}
	*f = FlexString(s)
	return nil
}

// String converts FlexString back to string.
func (f FlexString) String() string {
	return string(f)
}
