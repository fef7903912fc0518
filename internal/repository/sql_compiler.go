package repository

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"product_catalog/internal/pipeline"
)

var errUnsupportedStage = errors.New("unsupported pipeline stage")

// productColumns maps pipeline fields onto the products table (alias p)
// joined with users (alias u).
var productColumns = map[pipeline.Field]string{
	pipeline.FieldID:          "p.id",
	pipeline.FieldOwner:       "p.owner_id",
	pipeline.FieldName:        "p.name",
	pipeline.FieldDescription: "p.description",
	pipeline.FieldPrice:       "p.price",
	pipeline.FieldQuantity:    "p.quantity",
	pipeline.FieldCategory:    "p.category",
	pipeline.FieldImage:       "p.image",
	pipeline.FieldCreatedAt:   "p.created_at",
	pipeline.FieldUpdatedAt:   "p.updated_at",
	pipeline.FieldOwnerID:     "p.owner_id",
	pipeline.FieldOwnerName:   "COALESCE(u.name, '')",
	pipeline.FieldOwnerEmail:  "COALESCE(u.email, '')",
}

// textFields sort with the "C" collation: bytewise, as the memory store does
var textFields = map[pipeline.Field]bool{
	pipeline.FieldName:        true,
	pipeline.FieldDescription: true,
	pipeline.FieldCategory:    true,
	pipeline.FieldImage:       true,
	pipeline.FieldOwnerName:   true,
	pipeline.FieldOwnerEmail:  true,
}

func collate(f pipeline.Field, expr string) string {
	if textFields[f] {
		return expr + ` COLLATE "C"`
	}
	return expr
}

func isOwnerField(f pipeline.Field) bool {
	return f == pipeline.FieldOwnerName || f == pipeline.FieldOwnerEmail
}

// sqlQuery accumulates SQL text and positional arguments
type sqlQuery struct {
	sb   strings.Builder
	args []any
}

func (q *sqlQuery) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *sqlQuery) write(parts ...string) {
	for _, p := range parts {
		q.sb.WriteString(p)
	}
}

func (q *sqlQuery) String() string { return q.sb.String() }

// escapeLike makes user input match literally inside ILIKE
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func column(f pipeline.Field) (string, error) {
	col, ok := productColumns[f]
	if !ok {
		return "", fmt.Errorf("unknown field %q", f)
	}
	return col, nil
}

func (q *sqlQuery) condition(c pipeline.Condition) (string, error) {
	col, err := column(c.Field)
	if err != nil {
		return "", err
	}
	switch c.Op {
	case pipeline.OpEq:
		return col + " = " + q.arg(c.Value), nil
	case pipeline.OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("contains on %q needs a string", c.Field)
		}
		return col + " ILIKE " + q.arg("%"+escapeLike(s)+"%"), nil
	case pipeline.OpGte:
		return col + " >= " + q.arg(c.Value), nil
	case pipeline.OpLte:
		return col + " <= " + q.arg(c.Value), nil
	default:
		return "", fmt.Errorf("unknown operator %d", c.Op)
	}
}

// where renders the conjunction of all matches; empty when there is nothing to filter
func (q *sqlQuery) where(matches []pipeline.Match) (string, error) {
	var conds []string
	for _, m := range matches {
		for _, c := range m.Conditions {
			s, err := q.condition(c)
			if err != nil {
				return "", err
			}
			conds = append(conds, s)
		}
		if len(m.AnyOf) > 0 {
			var alts []string
			for _, c := range m.AnyOf {
				s, err := q.condition(c)
				if err != nil {
					return "", err
				}
				alts = append(alts, s)
			}
			conds = append(conds, "("+strings.Join(alts, " OR ")+")")
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}

// compileFind renders a Match/Lookup/Project/Sort/Skip/Limit pipeline.
// Only ProductProjection is supported since rows are scanned positionally.
func compileFind(stages []pipeline.Stage) (string, []any, error) {
	var (
		matches []pipeline.Match
		joined  bool
		project = pipeline.ProductProjection
		sort    *pipeline.Sort
		skip    *pipeline.Skip
		limit   *pipeline.Limit
	)
	for _, st := range stages {
		switch s := st.(type) {
		case pipeline.Match:
			matches = append(matches, s)
		case pipeline.Lookup:
			if s.From != pipeline.UsersCollection || s.LocalField != pipeline.FieldOwner {
				return "", nil, fmt.Errorf("%w: lookup from %q", errUnsupportedStage, s.From)
			}
			joined = true
		case pipeline.Project:
			project = s.Fields
		case pipeline.Sort:
			sort = &s
		case pipeline.Skip:
			skip = &s
		case pipeline.Limit:
			limit = &s
		default:
			return "", nil, fmt.Errorf("%w: %T in find", errUnsupportedStage, st)
		}
	}
	if !slices.Equal(project, pipeline.ProductProjection) {
		return "", nil, fmt.Errorf("%w: custom projection", errUnsupportedStage)
	}

	q := &sqlQuery{}
	cols := make([]string, 0, len(project))
	for _, f := range project {
		if isOwnerField(f) && !joined {
			return "", nil, fmt.Errorf("%w: %q needs an owner lookup", errUnsupportedStage, f)
		}
		col, err := column(f)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
	}
	q.write("SELECT ", strings.Join(cols, ", "), " FROM products p")
	if joined {
		q.write(" LEFT JOIN users u ON u.id = p.owner_id")
	}

	where, err := q.where(matches)
	if err != nil {
		return "", nil, err
	}
	q.write(where)

	if sort != nil && len(sort.Keys) > 0 {
		keys := make([]string, 0, len(sort.Keys))
		for _, k := range sort.Keys {
			col, err := column(k.Field)
			if err != nil {
				return "", nil, err
			}
			keys = append(keys, collate(k.Field, col)+direction(k.Desc))
		}
		q.write(" ORDER BY ", strings.Join(keys, ", "))
	}
	if skip != nil {
		q.write(" OFFSET ", q.arg(skip.N))
	}
	if limit != nil {
		q.write(" LIMIT ", q.arg(limit.N))
	}
	return q.String(), q.args, nil
}

// compileCount renders the row count of a predicate
func compileCount(filter pipeline.Match) (string, []any, error) {
	q := &sqlQuery{}
	q.write("SELECT COUNT(*) FROM products p")
	where, err := q.where([]pipeline.Match{filter})
	if err != nil {
		return "", nil, err
	}
	q.write(where)
	return q.String(), q.args, nil
}

func quoteIdent(f pipeline.Field) string {
	return `"` + strings.ReplaceAll(string(f), `"`, `""`) + `"`
}

func (q *sqlQuery) accumulator(acc pipeline.Accumulator) (string, error) {
	var col, times string
	var err error
	if acc.Op != pipeline.AccCount {
		if col, err = column(acc.Field); err != nil {
			return "", err
		}
	}
	if acc.Op == pipeline.AccSumProduct {
		if times, err = column(acc.Times); err != nil {
			return "", err
		}
	}

	var expr string
	switch acc.Op {
	case pipeline.AccCount:
		expr = "COUNT(*)"
	case pipeline.AccSum:
		expr = "COALESCE(SUM(" + col + "), 0)::float8"
	case pipeline.AccAvg:
		expr = "COALESCE(AVG(" + col + "), 0)"
		if acc.Round >= 0 {
			expr = "ROUND(" + expr + "::numeric, " + strconv.Itoa(acc.Round) + ")"
		}
		expr += "::float8"
	case pipeline.AccMin:
		expr = "COALESCE(MIN(" + col + "), 0)::float8"
	case pipeline.AccMax:
		expr = "COALESCE(MAX(" + col + "), 0)::float8"
	case pipeline.AccSumProduct:
		expr = "COALESCE(SUM(" + col + " * " + times + "), 0)::float8"
	case pipeline.AccDistinct:
		sorted := collate(acc.Field, col)
		expr = "COALESCE(ARRAY_AGG(DISTINCT " + sorted + " ORDER BY " + sorted + ") FILTER (WHERE " + col + " <> ''), '{}')::text[]"
	case pipeline.AccDistinctCount:
		expr = "COUNT(DISTINCT " + col + ") FILTER (WHERE " + col + " <> '')"
	case pipeline.AccCountBelow:
		expr = "COUNT(*) FILTER (WHERE " + col + " < " + q.arg(acc.Below) + ")"
	default:
		return "", fmt.Errorf("unknown accumulator %d", acc.Op)
	}
	return expr + " AS " + quoteIdent(acc.Name), nil
}

// compileGroup renders a Match/Group/Sort/Skip/Limit pipeline. The output
// columns are the group key (when grouping by a field) then the accumulators.
func compileGroup(stages []pipeline.Stage) (string, []any, *pipeline.Group, error) {
	var (
		matches []pipeline.Match
		group   *pipeline.Group
		sort    *pipeline.Sort
		skip    *pipeline.Skip
		limit   *pipeline.Limit
	)
	for _, st := range stages {
		switch s := st.(type) {
		case pipeline.Match:
			if group != nil {
				return "", nil, nil, fmt.Errorf("%w: match after group", errUnsupportedStage)
			}
			matches = append(matches, s)
		case pipeline.Group:
			if group != nil {
				return "", nil, nil, fmt.Errorf("%w: nested group", errUnsupportedStage)
			}
			group = &s
		case pipeline.Sort:
			sort = &s
		case pipeline.Skip:
			skip = &s
		case pipeline.Limit:
			limit = &s
		default:
			return "", nil, nil, fmt.Errorf("%w: %T in aggregate", errUnsupportedStage, st)
		}
	}
	if group == nil {
		return "", nil, nil, fmt.Errorf("%w: aggregate without group", errUnsupportedStage)
	}

	q := &sqlQuery{}
	var cols []string
	var keyCol string
	if group.By != "" {
		col, err := column(group.By)
		if err != nil {
			return "", nil, nil, err
		}
		keyCol = col
		cols = append(cols, col+" AS "+quoteIdent(group.By))
	}
	for _, acc := range group.Accumulators {
		expr, err := q.accumulator(acc)
		if err != nil {
			return "", nil, nil, err
		}
		cols = append(cols, expr)
	}
	q.write("SELECT ", strings.Join(cols, ", "), " FROM products p")

	where, err := q.where(matches)
	if err != nil {
		return "", nil, nil, err
	}
	q.write(where)
	if keyCol != "" {
		q.write(" GROUP BY ", keyCol)
	}

	if sort != nil && len(sort.Keys) > 0 {
		keys := make([]string, 0, len(sort.Keys))
		for _, k := range sort.Keys {
			if k.Field != group.By && !hasAccumulator(group, k.Field) {
				return "", nil, nil, fmt.Errorf("%w: sort on %q after group", errUnsupportedStage, k.Field)
			}
			keys = append(keys, collate(k.Field, quoteIdent(k.Field))+direction(k.Desc))
		}
		q.write(" ORDER BY ", strings.Join(keys, ", "))
	}
	if skip != nil {
		q.write(" OFFSET ", q.arg(skip.N))
	}
	if limit != nil {
		q.write(" LIMIT ", q.arg(limit.N))
	}
	return q.String(), q.args, group, nil
}

func hasAccumulator(g *pipeline.Group, f pipeline.Field) bool {
	for _, acc := range g.Accumulators {
		if acc.Name == f {
			return true
		}
	}
	return false
}
