package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderReplacesAllOccurrences(t *testing.T) {
	out := Render("Hi {{name}}, your code is {{code}}. Bye {{name}}!", map[string]interface{}{
		"name": "Ada",
		"code": 4711,
	})
	assert.Equal(t, "Hi Ada, your code is 4711. Bye Ada!", out)
}

func TestRenderIsPure(t *testing.T) {
	vars := map[string]interface{}{"a": "x"}
	first := Render("{{a}}-{{a}}", vars)
	second := Render("{{a}}-{{a}}", vars)
	assert.Equal(t, first, second)
	assert.Equal(t, "x-x", first)
}

func TestRenderLeavesUnknownTokensLiteral(t *testing.T) {
	out := Render("Hello {{name}}, balance {{balance}}", map[string]interface{}{"name": "Bob"})
	assert.Equal(t, "Hello Bob, balance {{balance}}", out)
}

func TestRenderEmptyVarsReturnsInput(t *testing.T) {
	in := "Hello {{name}}"
	assert.Equal(t, in, Render(in, nil))
	assert.Equal(t, in, Render(in, map[string]interface{}{}))
}

func TestRenderSinglePassNoRecursiveExpansion(t *testing.T) {
	out := Render("{{a}}", map[string]interface{}{"a": "{{b}}", "b": "X"})
	assert.Equal(t, "{{b}}", out)
}

func TestRenderValueTypes(t *testing.T) {
	out := Render("{{s}}|{{n}}|{{f}}|{{b}}|{{nil}}", map[string]interface{}{
		"s":   "str",
		"n":   3,
		"f":   1.5,
		"b":   true,
		"nil": nil,
	})
	assert.Equal(t, "str|3|1.5|true|", out)
}

func TestTokens(t *testing.T) {
	names := Tokens("{{a}} {{b}} and {{a}} again, plus {{c-d}}")
	assert.Equal(t, []string{"a", "b", "c-d"}, names)
	assert.Empty(t, Tokens("no tokens here"))
}
