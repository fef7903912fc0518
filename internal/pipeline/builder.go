package pipeline

import (
	"product_catalog/internal/model"

	"github.com/google/uuid"
)

// UsersCollection is the lookup target holding owner records
const UsersCollection = "users"

// BuildFilter translates options into the listing predicate. The owner
// condition always comes first so no option can widen the tenant scope.
func BuildFilter(ownerID uuid.UUID, opts ListOptions) Match {
	m := Match{Conditions: []Condition{OwnedBy(ownerID)}}

	if opts.Search != "" {
		m.AnyOf = []Condition{
			{Field: FieldName, Op: OpContains, Value: opts.Search},
			{Field: FieldDescription, Op: OpContains, Value: opts.Search},
		}
	}
	if opts.Name != "" {
		m.Conditions = append(m.Conditions, Condition{Field: FieldName, Op: OpContains, Value: opts.Name})
	}
	if opts.Category != "" {
		m.Conditions = append(m.Conditions, Condition{Field: FieldCategory, Op: OpContains, Value: opts.Category})
	}

	switch {
	case opts.Price != nil:
		m.Conditions = append(m.Conditions, Condition{Field: FieldPrice, Op: OpEq, Value: *opts.Price})
	default:
		if opts.MinPrice != nil {
			m.Conditions = append(m.Conditions, Condition{Field: FieldPrice, Op: OpGte, Value: *opts.MinPrice})
		}
		if opts.MaxPrice != nil {
			m.Conditions = append(m.Conditions, Condition{Field: FieldPrice, Op: OpLte, Value: *opts.MaxPrice})
		}
	}

	switch {
	case opts.Quantity != nil:
		m.Conditions = append(m.Conditions, Condition{Field: FieldQuantity, Op: OpEq, Value: *opts.Quantity})
	default:
		if opts.MinQuantity != nil {
			m.Conditions = append(m.Conditions, Condition{Field: FieldQuantity, Op: OpGte, Value: *opts.MinQuantity})
		}
		if opts.MaxQuantity != nil {
			m.Conditions = append(m.Conditions, Condition{Field: FieldQuantity, Op: OpLte, Value: *opts.MaxQuantity})
		}
	}

	m.Conditions = append(m.Conditions, dateConditions(opts)...)
	return m
}

// dateConditions: a single createdAt or a lone startDate selects that whole
// UTC day; startDate with endDate is an inclusive day range.
func dateConditions(opts ListOptions) []Condition {
	var from, to *Condition
	switch {
	case opts.CreatedAt != nil:
		from = &Condition{Field: FieldCreatedAt, Op: OpGte, Value: StartOfDay(*opts.CreatedAt)}
		to = &Condition{Field: FieldCreatedAt, Op: OpLte, Value: EndOfDay(*opts.CreatedAt)}
	case opts.StartDate != nil && opts.EndDate != nil:
		from = &Condition{Field: FieldCreatedAt, Op: OpGte, Value: StartOfDay(*opts.StartDate)}
		to = &Condition{Field: FieldCreatedAt, Op: OpLte, Value: EndOfDay(*opts.EndDate)}
	case opts.StartDate != nil:
		from = &Condition{Field: FieldCreatedAt, Op: OpGte, Value: StartOfDay(*opts.StartDate)}
		to = &Condition{Field: FieldCreatedAt, Op: OpLte, Value: EndOfDay(*opts.StartDate)}
	case opts.EndDate != nil:
		to = &Condition{Field: FieldCreatedAt, Op: OpLte, Value: EndOfDay(*opts.EndDate)}
	}

	var out []Condition
	if from != nil {
		out = append(out, *from)
	}
	if to != nil {
		out = append(out, *to)
	}
	return out
}

func ownerLookup() Lookup {
	return Lookup{From: UsersCollection, LocalField: FieldOwner, As: "owner"}
}

// BuildListPipeline returns filter → join owner → project → sort → skip → limit.
// Ties on the sort key are broken by id so pages never overlap.
func BuildListPipeline(ownerID uuid.UUID, opts ListOptions) []Stage {
	opts = opts.WithDefaults()

	sortField, ok := SortableFields[opts.SortBy]
	if !ok {
		sortField = FieldCreatedAt
	}

	return []Stage{
		BuildFilter(ownerID, opts),
		ownerLookup(),
		Project{Fields: ProductProjection},
		Sort{Keys: []SortKey{
			{Field: sortField, Desc: opts.SortOrder == "desc"},
			{Field: FieldID},
		}},
		Skip{N: (opts.Page - 1) * opts.Limit},
		Limit{N: opts.Limit},
	}
}

// BuildGetPipeline looks up one product; ownership is part of the predicate.
func BuildGetPipeline(ownerID, productID uuid.UUID) []Stage {
	return []Stage{
		ByOwnerAndID(ownerID, productID),
		ownerLookup(),
		Project{Fields: ProductProjection},
		Limit{N: 1},
	}
}

// ByOwnerAndID is the predicate of scoped single-product operations
func ByOwnerAndID(ownerID, productID uuid.UUID) Match {
	return Match{Conditions: []Condition{
		OwnedBy(ownerID),
		{Field: FieldID, Op: OpEq, Value: productID},
	}}
}

// Accumulator names of the stats pipelines
const (
	StatTotalProducts    Field = "totalProducts"
	StatTotalValue       Field = "totalValue"
	StatAveragePrice     Field = "averagePrice"
	StatTotalStock       Field = "totalStock"
	StatMinPrice         Field = "minPrice"
	StatMaxPrice         Field = "maxPrice"
	StatCategories       Field = "categories"
	StatCategoryCount    Field = "categoryCount"
	StatLowStockProducts Field = "lowStockProducts"
	StatCount            Field = "count"
)

// BuildStatsPipeline aggregates all of one owner's products into one row
func BuildStatsPipeline(ownerID uuid.UUID) []Stage {
	return []Stage{
		Match{Conditions: []Condition{OwnedBy(ownerID)}},
		Group{
			Accumulators: []Accumulator{
				{Name: StatTotalProducts, Op: AccCount, Round: -1},
				{Name: StatTotalValue, Op: AccSum, Field: FieldPrice, Round: -1},
				{Name: StatAveragePrice, Op: AccAvg, Field: FieldPrice, Round: 2},
				{Name: StatTotalStock, Op: AccSum, Field: FieldQuantity, Round: -1},
				{Name: StatMinPrice, Op: AccMin, Field: FieldPrice, Round: -1},
				{Name: StatMaxPrice, Op: AccMax, Field: FieldPrice, Round: -1},
				{Name: StatCategories, Op: AccDistinct, Field: FieldCategory, Round: -1},
				{Name: StatCategoryCount, Op: AccDistinctCount, Field: FieldCategory, Round: -1},
				{Name: StatLowStockProducts, Op: AccCountBelow, Field: FieldQuantity, Below: model.LowStockThreshold, Round: -1},
			},
		},
	}
}

// BuildCategoryStatsPipeline groups one owner's products by category,
// largest groups first.
func BuildCategoryStatsPipeline(ownerID uuid.UUID) []Stage {
	return []Stage{
		Match{Conditions: []Condition{OwnedBy(ownerID)}},
		Group{
			By: FieldCategory,
			Accumulators: []Accumulator{
				{Name: StatCount, Op: AccCount, Round: -1},
				{Name: StatTotalValue, Op: AccSumProduct, Field: FieldPrice, Times: FieldQuantity, Round: -1},
				{Name: StatAveragePrice, Op: AccAvg, Field: FieldPrice, Round: 2},
				{Name: StatTotalStock, Op: AccSum, Field: FieldQuantity, Round: -1},
			},
		},
		Sort{Keys: []SortKey{
			{Field: StatCount, Desc: true},
			{Field: FieldCategory},
		}},
	}
}
