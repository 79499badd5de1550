// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contiene las migraciones de la base opcional (roles + auditoría).
//
//go:embed sql/*.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "sql"
