// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sql implements every Store interface once, against plain
// database/sql, so the same code backs both the default SQLite deployment
// and the Postgres opt-in (internal/store/backend picks which driver to
// open; this package only cares about the placeholder dialect).
package sql

import "strconv"

// Driver names the two dialects this package's queries are written for.
type Driver string

const (
	DriverSQLite   Driver = "sqlite3"
	DriverPostgres Driver = "postgres"
)

// rebind rewrites a query's `?` placeholders into Postgres's positional
// `$1, $2, ...` form when driver is DriverPostgres, leaving sqlite's own
// `?` form untouched otherwise. Every store method below is written once
// against `?`, the lowest common denominator, and calls this before
// handing the query to *sql.DB.
func rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, '$')
			out = append(out, strconv.Itoa(n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
