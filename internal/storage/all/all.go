// Package all links every storage backend into the binary.
package all

import (
	_ "csvjson/internal/storage/mssql"
	_ "csvjson/internal/storage/postgres"
	_ "csvjson/internal/storage/sqlite"
)
