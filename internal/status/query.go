package status

import (
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

// QueryBuilder produces SQL WHERE fragments over a packed status column,
// mirroring the Status bit layout so repositories can filter rows by
// aggregate sub-task state without loading them first.
type QueryBuilder struct {
	column string
}

// NewQueryBuilder returns a QueryBuilder for the given packed-status column
// name (e.g. "download_status").
func NewQueryBuilder(column string) QueryBuilder {
	return QueryBuilder{column: column}
}

func (b QueryBuilder) slotExpr(offset int) string {
	return fmt.Sprintf("((%s >> %d) & 7)", b.column, offset*3)
}

// Succeeded matches rows where every slot equals OK.
func (b QueryBuilder) Succeeded() clause.Expr {
	parts := make([]string, Slots)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s = 7", b.slotExpr(i))
	}
	return clause.Expr{SQL: strings.Join(parts, " AND ")}
}

// Failed matches rows where any slot holds a value that is neither
// NotStarted nor OK (i.e. mid-retry or terminally failed).
func (b QueryBuilder) Failed() clause.Expr {
	parts := make([]string, Slots)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s NOT IN (0, 7)", b.slotExpr(i))
	}
	return clause.Expr{SQL: "(" + strings.Join(parts, " OR ") + ")"}
}

// Waiting matches rows where at least one slot is NotStarted and no slot is
// in the Failed set.
func (b QueryBuilder) Waiting() clause.Expr {
	parts := make([]string, Slots)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s = 0", b.slotExpr(i))
	}
	anyNotStarted := "(" + strings.Join(parts, " OR ") + ")"
	failed := b.Failed()
	return clause.Expr{SQL: anyNotStarted + " AND NOT " + failed.SQL}
}
