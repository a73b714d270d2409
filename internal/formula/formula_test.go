package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pieceEnv() MapEnv {
	return MapEnv{
		"width":     Number(2.40),
		"height":    Number(2.00),
		"area":      Number(4.80),
		"motorized": Bool(false),
		"rotated":   Bool(false),
		"side":      String("left"),
	}
}

func TestParse_Arithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want float64
	}{
		{"width - 0.005", 2.395},
		{"height + 0.25", 2.25},
		{"width * height", 4.80},
		{"area / 2", 2.40},
		{"2 + 3 * 4", 14},     // precedence
		{"(2 + 3) * 4", 20},   // grouping
		{"-width + 3", 0.60},  // unary minus
		{"ceil(width) * 2", 6},
		{"min(width, height)", 2.00},
		{"max(width, height, 5)", 5},
		{"round(2.4)", 2},
		{"floor(height + 0.9)", 2},
		{"abs(height - width)", 0.4},
	}
	for _, tc := range tests {
		e, err := Parse(tc.src)
		require.NoError(t, err, tc.src)
		got, err := e.EvalQuantity(pieceEnv())
		require.NoError(t, err, tc.src)
		assert.InDelta(t, tc.want, got, 1e-9, tc.src)
	}
}

func TestParse_Predicates(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"width <= 2.50", true},
		{"width > 3.0", false},
		{"!motorized", true},
		{"!motorized && width <= 2.50", true},
		{"motorized || rotated", false},
		{"side == 'left'", true},
		{"side != \"right\"", true},
		{"width == 2.40 ? true : false", true},
	}
	for _, tc := range tests {
		e, err := Parse(tc.src)
		require.NoError(t, err, tc.src)
		got, err := e.EvalBool(pieceEnv())
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.want, got, tc.src)
	}
}

func TestParse_Ternary_SelectsBranch(t *testing.T) {
	e := MustParse("width > 2.5 ? 3 : 2")
	got, err := e.EvalQuantity(pieceEnv())
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	env := pieceEnv()
	env["width"] = Number(3.20)
	got, err = e.EvalQuantity(env)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestParse_SyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"width +",
		"(width",
		"width ? 1",     // missing ':'
		"ceil()",        // arity
		"sqrt(width)",   // unknown function
		"width # 2",     // bad character
		"'unterminated", // bad string
		"1 2",           // trailing garbage
	} {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}

func TestValidate_RejectsUnknownVariables(t *testing.T) {
	e := MustParse("width * hieght + 0.25")
	err := e.Validate(func(name string) bool { return name == "width" || name == "height" })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hieght")

	assert.NoError(t, MustParse("width + height").Validate(func(string) bool { return true }))
}

func TestEval_DivisionByZero(t *testing.T) {
	e := MustParse("width / (height - 2.0)")
	_, err := e.EvalQuantity(pieceEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestEvalQuantity_RejectsNegativeResult(t *testing.T) {
	e := MustParse("width - 5.0")
	_, err := e.EvalQuantity(pieceEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestEvalQuantity_RejectsBoolResult(t *testing.T) {
	e := MustParse("width > 1.0")
	_, err := e.EvalQuantity(pieceEnv())
	assert.Error(t, err)
}

func TestEval_TypeMismatch(t *testing.T) {
	e := MustParse("motorized + 1")
	_, err := e.Eval(pieceEnv())
	assert.Error(t, err)

	e = MustParse("width && motorized")
	_, err = e.Eval(pieceEnv())
	assert.Error(t, err)
}

func TestEval_ShortCircuit(t *testing.T) {
	// The right operand divides by zero but must never be reached.
	e := MustParse("motorized && (1 / (height - 2.0)) > 0")
	got, err := e.EvalBool(pieceEnv())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestVars_ListsReferencedNames(t *testing.T) {
	e := MustParse("rotated && height > 2.80 ? width : height")
	assert.Equal(t, []string{"height", "rotated", "width"}, e.Vars())
}
