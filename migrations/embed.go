package migrations

import "embed"

// Files embeds the versioned up/down migrations, named NNNN_name.{up,down}.sql.
//
//go:embed *.sql
var Files embed.FS
