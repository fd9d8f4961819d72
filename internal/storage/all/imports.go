// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// factories and DDL bootstrappers with the storage package:
//
//   - "mysql"    (goldrates/internal/storage/mysql)
//   - "postgres" (goldrates/internal/storage/postgres)
//   - "mssql"    (goldrates/internal/storage/mssql)
//   - "sqlite"   (goldrates/internal/storage/sqlite)
//
// A binary that needs only a subset can import the backends it wants
// instead of this package.
package all

import (
	_ "goldrates/internal/storage/mssql"
	_ "goldrates/internal/storage/mysql"
	_ "goldrates/internal/storage/postgres"
	_ "goldrates/internal/storage/sqlite"
)
