// Package pipeline describes product read queries as ordered stage sequences,
// independent of the store that executes them. Nothing here does I/O.
package pipeline

import "github.com/google/uuid"

// Field names a product attribute, an owner projection attribute, or an
// accumulator output of a Group stage.
type Field string

const (
	FieldID          Field = "id"
	FieldOwner       Field = "owner"
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldPrice       Field = "price"
	FieldQuantity    Field = "quantity"
	FieldCategory    Field = "category"
	FieldImage       Field = "image"
	FieldCreatedAt   Field = "createdAt"
	FieldUpdatedAt   Field = "updatedAt"

	FieldOwnerID    Field = "owner.id"
	FieldOwnerName  Field = "owner.name"
	FieldOwnerEmail Field = "owner.email"
)

// Op is a comparison operator of a Condition
type Op int

const (
	OpEq Op = iota
	// OpContains is a case-insensitive literal substring match
	OpContains
	OpGte
	OpLte
)

type Condition struct {
	Field Field
	Op    Op
	Value any
}

// Stage is one step of a pipeline
type Stage interface {
	stage()
}

// Match keeps documents satisfying every Condition and, when AnyOf is
// non-empty, at least one of AnyOf.
type Match struct {
	Conditions []Condition
	AnyOf      []Condition
}

// Lookup joins the owner record onto each product
type Lookup struct {
	From       string
	LocalField Field
	As         string
}

// Project reshapes each document to Fields, in order
type Project struct {
	Fields []Field
}

type SortKey struct {
	Field Field
	Desc  bool
}

type Sort struct {
	Keys []SortKey
}

type Skip struct {
	N int64
}

type Limit struct {
	N int64
}

// AccOp is an aggregate function of a Group stage
type AccOp int

const (
	AccCount AccOp = iota
	AccSum
	AccAvg
	AccMin
	AccMax
	// AccSumProduct sums Field × Times
	AccSumProduct
	// AccDistinct collects the sorted set of non-empty values
	AccDistinct
	// AccDistinctCount is the cardinality of AccDistinct
	AccDistinctCount
	// AccCountBelow counts documents where Field < Below
	AccCountBelow
)

type Accumulator struct {
	Name  Field
	Op    AccOp
	Field Field
	Times Field
	Below float64
	// Round is the number of decimals kept; negative means no rounding
	Round int
}

// Group collapses documents sharing By into one output row. An empty By
// groups the whole input into a single row; the key is emitted as By.
type Group struct {
	By           Field
	Accumulators []Accumulator
}

func (Match) stage()   {}
func (Lookup) stage()  {}
func (Project) stage() {}
func (Sort) stage()    {}
func (Skip) stage()    {}
func (Limit) stage()   {}
func (Group) stage()   {}

// OwnedBy is the tenant-scoping condition every pipeline starts with
func OwnedBy(ownerID uuid.UUID) Condition {
	return Condition{Field: FieldOwner, Op: OpEq, Value: ownerID}
}

// ProductProjection is the output shape of list and get queries
var ProductProjection = []Field{
	FieldID, FieldName, FieldDescription, FieldPrice, FieldQuantity, FieldCategory, FieldImage,
	FieldOwnerID, FieldOwnerName, FieldOwnerEmail,
	FieldCreatedAt, FieldUpdatedAt,
}

// SortableFields are the keys accepted as sortBy
var SortableFields = map[string]Field{
	"name":      FieldName,
	"price":     FieldPrice,
	"quantity":  FieldQuantity,
	"category":  FieldCategory,
	"createdAt": FieldCreatedAt,
	"updatedAt": FieldUpdatedAt,
}
