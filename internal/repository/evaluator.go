package repository

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"product_catalog/internal/pipeline"

	"github.com/google/uuid"
)

// doc is a product as seen by the in-memory evaluator
type doc map[pipeline.Field]any

// ownerResolver returns the owner projection for a user id
type ownerResolver func(id uuid.UUID) (name, email string, ok bool)

// evaluate runs stages over docs in order
func evaluate(docs []doc, stages []pipeline.Stage, owners ownerResolver) ([]doc, error) {
	out := docs
	for _, st := range stages {
		switch s := st.(type) {
		case pipeline.Match:
			kept := out[:0:0]
			for _, d := range out {
				ok, err := matches(d, s)
				if err != nil {
					return nil, err
				}
				if ok {
					kept = append(kept, d)
				}
			}
			out = kept
		case pipeline.Lookup:
			if s.From != pipeline.UsersCollection || s.LocalField != pipeline.FieldOwner {
				return nil, fmt.Errorf("%w: lookup from %q", errUnsupportedStage, s.From)
			}
			joined := make([]doc, 0, len(out))
			for _, d := range out {
				id, _ := d[pipeline.FieldOwner].(uuid.UUID)
				name, email, _ := owners(id)
				nd := d.clone()
				nd[pipeline.FieldOwnerID] = id
				nd[pipeline.FieldOwnerName] = name
				nd[pipeline.FieldOwnerEmail] = email
				joined = append(joined, nd)
			}
			out = joined
		case pipeline.Project:
			projected := make([]doc, 0, len(out))
			for _, d := range out {
				nd := make(doc, len(s.Fields))
				for _, f := range s.Fields {
					nd[f] = d[f]
				}
				projected = append(projected, nd)
			}
			out = projected
		case pipeline.Sort:
			sorted := slices.Clone(out)
			slices.SortStableFunc(sorted, func(a, b doc) int {
				for _, k := range s.Keys {
					c := compareValues(a[k.Field], b[k.Field])
					if k.Desc {
						c = -c
					}
					if c != 0 {
						return c
					}
				}
				return 0
			})
			out = sorted
		case pipeline.Skip:
			if s.N >= int64(len(out)) {
				out = nil
			} else if s.N > 0 {
				out = out[s.N:]
			}
		case pipeline.Limit:
			if s.N >= 0 && s.N < int64(len(out)) {
				out = out[:s.N]
			}
		case pipeline.Group:
			grouped, err := group(out, s)
			if err != nil {
				return nil, err
			}
			out = grouped
		default:
			return nil, fmt.Errorf("%w: %T", errUnsupportedStage, st)
		}
	}
	return out, nil
}

func (d doc) clone() doc {
	nd := make(doc, len(d)+3)
	for k, v := range d {
		nd[k] = v
	}
	return nd
}

func matches(d doc, m pipeline.Match) (bool, error) {
	for _, c := range m.Conditions {
		ok, err := holds(d, c)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(m.AnyOf) == 0 {
		return true, nil
	}
	for _, c := range m.AnyOf {
		ok, err := holds(d, c)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func holds(d doc, c pipeline.Condition) (bool, error) {
	v, present := d[c.Field]
	if !present {
		return false, fmt.Errorf("unknown field %q", c.Field)
	}
	switch c.Op {
	case pipeline.OpEq:
		return compareValues(v, c.Value) == 0, nil
	case pipeline.OpContains:
		needle, ok := c.Value.(string)
		if !ok {
			return false, fmt.Errorf("contains on %q needs a string", c.Field)
		}
		s, _ := v.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(needle)), nil
	case pipeline.OpGte:
		return compareValues(v, c.Value) >= 0, nil
	case pipeline.OpLte:
		return compareValues(v, c.Value) <= 0, nil
	default:
		return false, fmt.Errorf("unknown operator %d", c.Op)
	}
}

// compareValues orders the scalar types a product document holds.
// Numbers compare across int64 and float64; strings compare bytewise, like
// COLLATE "C" in the SQL compiler.
func compareValues(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return cmp.Compare(x, y)
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	case uuid.UUID:
		y, _ := b.(uuid.UUID)
		return strings.Compare(x.String(), y.String())
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func round(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// group collapses docs. Without By, an empty input still yields one row of
// zero values.
func group(docs []doc, g pipeline.Group) ([]doc, error) {
	var keys []string
	buckets := map[string][]doc{}
	if g.By == "" {
		keys = []string{""}
		buckets[""] = docs
	} else {
		for _, d := range docs {
			k, ok := d[g.By].(string)
			if !ok {
				return nil, fmt.Errorf("%w: group key %q is not a string", errUnsupportedStage, g.By)
			}
			if _, seen := buckets[k]; !seen {
				keys = append(keys, k)
			}
			buckets[k] = append(buckets[k], d)
		}
	}

	out := make([]doc, 0, len(keys))
	for _, k := range keys {
		row := doc{}
		if g.By != "" {
			row[g.By] = k
		}
		for _, acc := range g.Accumulators {
			v, err := accumulate(buckets[k], acc)
			if err != nil {
				return nil, err
			}
			row[acc.Name] = v
		}
		out = append(out, row)
	}
	return out, nil
}

func accumulate(docs []doc, acc pipeline.Accumulator) (any, error) {
	num := func(d doc, f pipeline.Field) (float64, error) {
		v, ok := toFloat(d[f])
		if !ok {
			return 0, fmt.Errorf("field %q is not numeric", f)
		}
		return v, nil
	}

	switch acc.Op {
	case pipeline.AccCount:
		return int64(len(docs)), nil
	case pipeline.AccSum, pipeline.AccAvg, pipeline.AccSumProduct:
		var sum float64
		for _, d := range docs {
			v, err := num(d, acc.Field)
			if err != nil {
				return nil, err
			}
			if acc.Op == pipeline.AccSumProduct {
				t, err := num(d, acc.Times)
				if err != nil {
					return nil, err
				}
				v *= t
			}
			sum += v
		}
		if acc.Op == pipeline.AccAvg && len(docs) > 0 {
			sum /= float64(len(docs))
		}
		return round(sum, acc.Round), nil
	case pipeline.AccMin, pipeline.AccMax:
		var best float64
		for i, d := range docs {
			v, err := num(d, acc.Field)
			if err != nil {
				return nil, err
			}
			if i == 0 || (acc.Op == pipeline.AccMin && v < best) || (acc.Op == pipeline.AccMax && v > best) {
				best = v
			}
		}
		return round(best, acc.Round), nil
	case pipeline.AccDistinct, pipeline.AccDistinctCount:
		set := []string{}
		for _, d := range docs {
			s, _ := d[acc.Field].(string)
			if s != "" && !slices.Contains(set, s) {
				set = append(set, s)
			}
		}
		if acc.Op == pipeline.AccDistinctCount {
			return int64(len(set)), nil
		}
		slices.Sort(set)
		return set, nil
	case pipeline.AccCountBelow:
		var n int64
		for _, d := range docs {
			v, err := num(d, acc.Field)
			if err != nil {
				return nil, err
			}
			if v < acc.Below {
				n++
			}
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown accumulator %d", acc.Op)
	}
}
