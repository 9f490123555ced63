// Package plan defines the logical-plan intermediate representation built by
// the dataframe API and shipped to the execution service.
//
// A plan is a tree of [Relation] nodes, each owning zero or more child
// relations and [Expression] trees. Nodes are immutable once constructed:
// builder operations never mutate their inputs, so a subtree may safely be
// shared between parents and across concurrent runs without synchronization.
//
// Every relation carries a process-unique plan id assigned exactly once at
// construction, which the wire format requires to distinguish structurally
// identical subplans.
package plan

// Relation is one tabular operator node in the logical plan tree.
//
// The set of relation kinds is closed; the plan codec holds the single
// exhaustive dispatch point over them.
type Relation interface {
	// PlanID returns the process-unique id assigned at construction.
	PlanID() int64
	// Children returns the child relations, outermost input first.
	Children() []Relation

	isRelation()
}

// Expression is one scalar computation node used within a relation.
//
// Like relations, expressions are immutable once built and freely shared.
type Expression interface {
	String() string

	isExpression()
}

// IDGenerator hands out process-unique plan ids. *session.Session satisfies
// it.
type IDGenerator interface {
	NextPlanID() int64
}

// relationBase carries the plan id common to every relation node.
type relationBase struct {
	planID int64
}

// PlanID returns the process-unique id assigned at construction.
func (b relationBase) PlanID() int64 { return b.planID }

func (relationBase) isRelation() {}
