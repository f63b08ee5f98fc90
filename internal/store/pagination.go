package store

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// ListParams controls offset pagination for list queries.
type ListParams struct {
	Limit  int
	Offset int
	// Search is an optional case-insensitive substring filter. Each list
	// operation decides which columns it applies to.
	Search string
}

// normalize applies defaults and clamps values.
func (p ListParams) normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Page is one slice of a paginated list plus the total row count.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// listPage runs a count query and a LIMIT/OFFSET select against table with
// the same filter.
func listPage[T any](
	ctx context.Context,
	q dbtx,
	sb sq.StatementBuilderType,
	table string,
	columns []string,
	where sq.Sqlizer,
	orderBy string,
	p ListParams,
	scan func(rowScanner) (T, error),
) (Page[T], error) {
	p = p.normalize()

	countQ := sb.Select("count(*)").From(table)
	selectQ := sb.Select(columns...).From(table).
		OrderBy(orderBy).
		Limit(uint64(p.Limit)).
		Offset(uint64(p.Offset))
	if where != nil {
		countQ = countQ.Where(where)
		selectQ = selectQ.Where(where)
	}

	total, err := count(ctx, q, countQ)
	if err != nil {
		return Page[T]{}, err
	}
	items, err := getMany(ctx, q, selectQ, scan)
	if err != nil {
		return Page[T]{}, err
	}

	return Page[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}, nil
}

// searchFilter builds an OR of ILIKE matches over cols, or nil for an empty
// search term.
func searchFilter(term string, cols ...string) sq.Sqlizer {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	or := make(sq.Or, 0, len(cols))
	for _, c := range cols {
		or = append(or, sq.ILike{c: pattern})
	}
	return or
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
