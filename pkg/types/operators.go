package types

import "fmt"

// JoinType denotes how two relations are combined by a join.
type JoinType int

// Recognized values of [JoinType].
const (
	// JoinTypeInvalid indicates an invalid join type.
	JoinTypeInvalid JoinType = iota

	JoinTypeInner     // Inner join.
	JoinTypeLeft      // Left outer join.
	JoinTypeRight     // Right outer join.
	JoinTypeFullOuter // Full outer join.
	JoinTypeLeftSemi  // Left semi join.
	JoinTypeLeftAnti  // Left anti join.
	JoinTypeCross     // Cross join (no condition).
)

var joinTypeStrings = map[JoinType]string{
	JoinTypeInvalid: "invalid",

	JoinTypeInner:     "INNER",
	JoinTypeLeft:      "LEFT",
	JoinTypeRight:     "RIGHT",
	JoinTypeFullOuter: "FULL_OUTER",
	JoinTypeLeftSemi:  "LEFT_SEMI",
	JoinTypeLeftAnti:  "LEFT_ANTI",
	JoinTypeCross:     "CROSS",
}

// String returns the string representation of the JoinType.
func (t JoinType) String() string {
	if s, ok := joinTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("JoinType(%d)", t)
}

// SortDirection denotes the order in which a sort key is applied.
type SortDirection int

// Recognized values of [SortDirection].
const (
	// SortDirectionInvalid indicates an invalid sort direction.
	SortDirectionInvalid SortDirection = iota

	SortDirectionAscending  // Ascending sort order.
	SortDirectionDescending // Descending sort order.
)

var sortDirectionStrings = map[SortDirection]string{
	SortDirectionInvalid: "invalid",

	SortDirectionAscending:  "ASC",
	SortDirectionDescending: "DESC",
}

// String returns the string representation of the SortDirection.
func (d SortDirection) String() string {
	if s, ok := sortDirectionStrings[d]; ok {
		return s
	}
	return fmt.Sprintf("SortDirection(%d)", d)
}

// NullOrdering denotes where NULL values sort relative to non-NULL values.
type NullOrdering int

// Recognized values of [NullOrdering].
const (
	// NullOrderingInvalid indicates an invalid null ordering.
	NullOrderingInvalid NullOrdering = iota

	NullOrderingNullsFirst // NULL values sort before all other values.
	NullOrderingNullsLast  // NULL values sort after all other values.
)

var nullOrderingStrings = map[NullOrdering]string{
	NullOrderingInvalid: "invalid",

	NullOrderingNullsFirst: "NULLS_FIRST",
	NullOrderingNullsLast:  "NULLS_LAST",
}

// String returns the string representation of the NullOrdering.
func (o NullOrdering) String() string {
	if s, ok := nullOrderingStrings[o]; ok {
		return s
	}
	return fmt.Sprintf("NullOrdering(%d)", o)
}

// SetOpType denotes the kind of set operation combining two relations.
type SetOpType int

// Recognized values of [SetOpType].
const (
	// SetOpTypeInvalid indicates an invalid set operation.
	SetOpTypeInvalid SetOpType = iota

	SetOpTypeUnion     // Union of both inputs.
	SetOpTypeIntersect // Intersection of both inputs.
	SetOpTypeExcept    // Rows of the left input absent from the right.
)

var setOpTypeStrings = map[SetOpType]string{
	SetOpTypeInvalid: "invalid",

	SetOpTypeUnion:     "UNION",
	SetOpTypeIntersect: "INTERSECT",
	SetOpTypeExcept:    "EXCEPT",
}

// String returns the string representation of the SetOpType.
func (t SetOpType) String() string {
	if s, ok := setOpTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("SetOpType(%d)", t)
}

// GroupType denotes the grouping scheme of an aggregation.
type GroupType int

// Recognized values of [GroupType].
const (
	// GroupTypeInvalid indicates an invalid group type.
	GroupTypeInvalid GroupType = iota

	GroupTypeGroupBy // Plain GROUP BY over the grouping expressions.
	GroupTypeRollup  // ROLLUP over the grouping expressions.
	GroupTypeCube    // CUBE over the grouping expressions.
)

var groupTypeStrings = map[GroupType]string{
	GroupTypeInvalid: "invalid",

	GroupTypeGroupBy: "GROUP_BY",
	GroupTypeRollup:  "ROLLUP",
	GroupTypeCube:    "CUBE",
}

// String returns the string representation of the GroupType.
func (t GroupType) String() string {
	if s, ok := groupTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("GroupType(%d)", t)
}

// ExplainMode denotes the verbosity of a plan explanation request.
type ExplainMode int

// Recognized values of [ExplainMode].
const (
	// ExplainModeInvalid indicates an invalid explain mode.
	ExplainModeInvalid ExplainMode = iota

	ExplainModeSimple    // Physical plan only.
	ExplainModeExtended  // Logical and physical plans.
	ExplainModeCodegen   // Physical plan with generated code, when available.
	ExplainModeCost      // Logical plan with cost statistics, when available.
	ExplainModeFormatted // Physical plan outline with node details.
)

var explainModeStrings = map[ExplainMode]string{
	ExplainModeInvalid: "invalid",

	ExplainModeSimple:    "simple",
	ExplainModeExtended:  "extended",
	ExplainModeCodegen:   "codegen",
	ExplainModeCost:      "cost",
	ExplainModeFormatted: "formatted",
}

// String returns the string representation of the ExplainMode.
func (m ExplainMode) String() string {
	if s, ok := explainModeStrings[m]; ok {
		return s
	}
	return fmt.Sprintf("ExplainMode(%d)", m)
}

func reverse[K comparable](m map[K]string) map[string]K {
	out := make(map[string]K, len(m))
	for k, s := range m {
		out[s] = k
	}
	return out
}

var (
	joinTypeValues      = reverse(joinTypeStrings)
	sortDirectionValues = reverse(sortDirectionStrings)
	nullOrderingValues  = reverse(nullOrderingStrings)
	setOpTypeValues     = reverse(setOpTypeStrings)
	groupTypeValues     = reverse(groupTypeStrings)
	explainModeValues   = reverse(explainModeStrings)
)

// ParseJoinType returns the join type named by s, or JoinTypeInvalid.
func ParseJoinType(s string) JoinType { return joinTypeValues[s] }

// ParseSortDirection returns the sort direction named by s, or
// SortDirectionInvalid.
func ParseSortDirection(s string) SortDirection { return sortDirectionValues[s] }

// ParseNullOrdering returns the null ordering named by s, or
// NullOrderingInvalid.
func ParseNullOrdering(s string) NullOrdering { return nullOrderingValues[s] }

// ParseSetOpType returns the set operation type named by s, or
// SetOpTypeInvalid.
func ParseSetOpType(s string) SetOpType { return setOpTypeValues[s] }

// ParseGroupType returns the group type named by s, or GroupTypeInvalid.
func ParseGroupType(s string) GroupType { return groupTypeValues[s] }

// ParseExplainMode returns the explain mode named by s, or
// ExplainModeInvalid.
func ParseExplainMode(s string) ExplainMode { return explainModeValues[s] }
