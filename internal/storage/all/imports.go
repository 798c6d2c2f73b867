// Package all wires every built-in storage dialect into the storage
// registry. It exists purely for side effects:
//
//	import _ "github.com/CThaw90/refocus-dataset/internal/storage/all"
//
// after which Config.Driver may be "mysql", "postgres", "mssql" or "sqlite".
// A binary that needs only a subset can blank-import the individual
// dialect packages instead.
package all

import (
	_ "github.com/CThaw90/refocus-dataset/internal/storage/mssql"
	_ "github.com/CThaw90/refocus-dataset/internal/storage/mysql"
	_ "github.com/CThaw90/refocus-dataset/internal/storage/postgres"
	_ "github.com/CThaw90/refocus-dataset/internal/storage/sqlite"
)
