package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/irfanghat/spark-connect-go/pkg/codec"
	"github.com/irfanghat/spark-connect-go/pkg/plan"
	"github.com/irfanghat/spark-connect-go/pkg/sparkerrors"
	"github.com/irfanghat/spark-connect-go/pkg/types"
)

type counterGen struct{ n int64 }

func (g *counterGen) NextPlanID() int64 {
	g.n++
	return g.n
}

// buildQuery assembles a tree touching most node and expression variants.
func buildQuery(t *testing.T) plan.Relation {
	t.Helper()
	b := plan.NewBuilder(&counterGen{})

	read, err := b.Read("people")
	require.NoError(t, err)
	other, err := b.ReadSource("parquet", map[string]string{"path": "/data/people"})
	require.NoError(t, err)

	joined, err := b.Join(read, other, types.JoinTypeLeft,
		plan.Eq(plan.Col("people.id"), plan.Col("id")))
	require.NoError(t, err)

	filtered, err := b.Filter(joined, plan.Gt(plan.Col("age"), plan.Lit(int64(21))))
	require.NoError(t, err)

	grouped, err := b.GroupBy(filtered,
		[]plan.Expression{plan.Col("city")},
		[]plan.Expression{plan.NewAlias(plan.FnDistinct("count", plan.Col("id")), "n")})
	require.NoError(t, err)

	sorted, err := b.Sort(grouped, plan.Desc(plan.Col("n")))
	require.NoError(t, err)

	limited, err := b.Limit(sorted, 100)
	require.NoError(t, err)
	return limited
}

func TestEncodeIsDeterministic(t *testing.T) {
	rel := buildQuery(t)

	first, err := codec.EncodeBytes(rel)
	require.NoError(t, err)
	second, err := codec.EncodeBytes(rel)
	require.NoError(t, err)
	require.Equal(t, first, second, "encoding the same tree twice must be byte-identical")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := plan.NewBuilder(&counterGen{})

	for _, tt := range []struct {
		name  string
		build func() (plan.Relation, error)
	}{
		{
			name:  "read",
			build: func() (plan.Relation, error) { return b.Read("people") },
		},
		{
			name:  "range",
			build: func() (plan.Relation, error) { return b.Range(0, 1000, 2, 4) },
		},
		{
			name: "local relation",
			build: func() (plan.Relation, error) {
				schema := types.NewSchema(
					types.Field{Name: "x", Type: types.Int64, Nullable: true},
					types.Field{Name: "s", Type: types.String, Nullable: false},
				)
				return b.LocalRelation(schema, [][]any{
					{int64(1), "a"},
					{nil, "b"},
				})
			},
		},
		{
			name: "sql with args",
			build: func() (plan.Relation, error) {
				return b.SQL("SELECT * FROM t WHERE x > :min", map[string]any{"min": int64(3)})
			},
		},
		{
			name: "deduplicate and sample",
			build: func() (plan.Relation, error) {
				read, err := b.Read("people")
				if err != nil {
					return nil, err
				}
				dedup, err := b.Deduplicate(read, "id")
				if err != nil {
					return nil, err
				}
				return b.Sample(dedup, 0, 0.25, false, 42)
			},
		},
		{
			name: "set op by name",
			build: func() (plan.Relation, error) {
				left, err := b.Read("a")
				if err != nil {
					return nil, err
				}
				right, err := b.Read("b")
				if err != nil {
					return nil, err
				}
				return b.SetOp(left, right, types.SetOpTypeExcept, true, false)
			},
		},
		{
			name: "column surgery",
			build: func() (plan.Relation, error) {
				read, err := b.Read("people")
				if err != nil {
					return nil, err
				}
				withCols, err := b.WithColumns(read, plan.NewAlias(
					plan.NewCast(plan.Col("age"), types.Float64), "age_f"))
				if err != nil {
					return nil, err
				}
				renamed, err := b.WithColumnsRenamed(withCols, map[string]string{"age_f": "age"})
				if err != nil {
					return nil, err
				}
				dropped, err := b.Drop(renamed, "tmp")
				if err != nil {
					return nil, err
				}
				return b.ToDF(dropped, "person_id", "person_age")
			},
		},
		{
			name:  "full query",
			build: func() (plan.Relation, error) { return buildQuery(t), nil },
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := tt.build()
			require.NoError(t, err)

			encoded, err := codec.Encode(rel)
			require.NoError(t, err)

			decoded, err := codec.Decode(encoded, &counterGen{})
			require.NoError(t, err)
			require.True(t, plan.Equal(rel, decoded), "round-tripped tree differs")
		})
	}
}

func TestEncodeRejectsUnsupportedLiteral(t *testing.T) {
	b := plan.NewBuilder(&counterGen{})

	read, err := b.Read("people")
	require.NoError(t, err)
	project, err := b.Project(read, plan.Lit(struct{ X int }{X: 1}))
	require.NoError(t, err)

	_, err = codec.Encode(project)
	var uerr *sparkerrors.UnsupportedTypeError
	require.ErrorAs(t, err, &uerr)
	require.NotEmpty(t, uerr.Node)
	require.Contains(t, uerr.Type, "struct")
}

func TestEncodeWindowExpression(t *testing.T) {
	b := plan.NewBuilder(&counterGen{})

	read, err := b.Read("events")
	require.NoError(t, err)
	win := plan.NewWindow(
		plan.Fn("row_number"),
		[]plan.Expression{plan.Col("user")},
		[]*plan.SortOrder{plan.Asc(plan.Col("ts"))},
		&plan.WindowFrame{RowFrame: true, LowerUnbounded: true, Upper: 0},
	)
	project, err := b.Project(read, plan.NewAlias(win, "rn"))
	require.NoError(t, err)

	encoded, err := codec.Encode(project)
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded, &counterGen{})
	require.NoError(t, err)
	require.True(t, plan.Equal(project, decoded))
}
