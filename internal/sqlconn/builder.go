package sqlconn

import (
	"fmt"
	"strings"
)

// qualify renders a schema-qualified identifier. An empty schema omits the
// qualifier, matching Postgres' default-search-path behavior.
func qualify(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdent double-quotes and escapes a single SQL identifier, exported
// for callers (e.g. internal/meta) that need to render DDL this package
// does not already provide a statement for, such as CREATE SCHEMA.
func QuoteIdent(name string) string {
	return quoteIdent(name)
}

// CreateTableIfNotExists renders a minimal CREATE TABLE statement. It is
// intentionally not a general schema DSL (§1 non-goal: "the template
// renderer... callers pass pre-rendered SQL or use a minimal builder") —
// just enough to stand up the fixed meta-tables (§4.6) lazily.
func CreateTableIfNotExists(schema, table string, columns []ColumnDef, primaryKey string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", qualify(schema, table))
	for i, c := range columns {
		fmt.Fprintf(&b, "  %s %s", quoteIdent(c.Name), c.SQLType)
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
		if c.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", c.Default)
		}
		if i < len(columns)-1 || primaryKey != "" {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if primaryKey != "" {
		fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n", primaryKey)
	}
	b.WriteString(")")
	return b.String()
}

// ColumnDef is one column of a CreateTableIfNotExists statement.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Default  string
}

// UpsertOnConflict renders an INSERT ... ON CONFLICT (pk) DO UPDATE
// statement over a source table (typically a temp table freshly populated
// via COPY) into dest, updating only updateCols and leaving identifying
// columns untouched after creation (§4.5 step 4).
func UpsertOnConflict(destSchema, destTable, srcTable string, allCols []string, pkCol string, updateCols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s)\n", qualify(destSchema, destTable), joinIdents(allCols))
	fmt.Fprintf(&b, "SELECT %s FROM %s\n", joinIdents(allCols), quoteIdent(srcTable))
	fmt.Fprintf(&b, "ON CONFLICT (%s) DO", quoteIdent(pkCol))
	if len(updateCols) == 0 {
		b.WriteString(" NOTHING")
		return b.String()
	}
	b.WriteString(" UPDATE SET ")
	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(c), quoteIdent(c))
	}
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

// UpsertRowOnConflict renders a single-row INSERT ... VALUES (...) ON
// CONFLICT (pk) DO UPDATE statement with positional placeholders, for the
// `stream` tag's row-at-a-time flush path that bypasses COPY (§4.5 stream
// tag).
func UpsertRowOnConflict(destSchema, destTable string, allCols []string, pkCol string, updateCols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s)\n", qualify(destSchema, destTable), joinIdents(allCols))
	placeholders := make([]string, len(allCols))
	for i := range allCols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	fmt.Fprintf(&b, "VALUES (%s)\n", strings.Join(placeholders, ", "))
	fmt.Fprintf(&b, "ON CONFLICT (%s) DO", quoteIdent(pkCol))
	if len(updateCols) == 0 {
		b.WriteString(" NOTHING")
		return b.String()
	}
	b.WriteString(" UPDATE SET ")
	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(c), quoteIdent(c))
	}
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// CreateTempLike renders a CREATE TEMP TABLE ... (LIKE ...) INCLUDING
// DEFAULTS statement used as the COPY landing zone before the upsert pass.
func CreateTempLike(tempName, schema, table string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		quoteIdent(tempName), qualify(schema, table))
}
