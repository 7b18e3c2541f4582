package repository

import (
	"strings"

	"github.com/Masterminds/squirrel"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term anywhere, with wildcards escaped.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}

// titleContains matches column against term case-insensitively.
func titleContains(column, term string) squirrel.Sqlizer {
	return squirrel.Expr(column+` ILIKE ? ESCAPE '\'`, containsPattern(term))
}

// titleEquals matches column against title case-insensitively.
func titleEquals(column, title string) squirrel.Sqlizer {
	return squirrel.Expr("lower("+column+") = lower(?)", strings.TrimSpace(title))
}

func searchLimit(limit int) uint64 {
	if limit <= 0 {
		return 10
	}
	return uint64(limit)
}
