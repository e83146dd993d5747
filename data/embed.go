// Package data embeds the database bootstrap SQL used by the
// testcontainers tooling to initialize a blank MariaDB instance.
package data

import (
	_ "embed"
)

//go:embed initdb/mariadb/002-ddl-tables.sql
var InitdbMariaDBTables string

//go:embed initdb/mariadb/003-ddl-privileges.sql
var InitdbMariaDBPrivileges string
