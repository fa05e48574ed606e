package instrument

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestInstrumenter() *Instrumenter {
	// Prelude off keeps assertions about injected records readable; the
	// prelude has its own tests.
	return NewInstrumenter(WithPrelude(false))
}

func TestInstrument_FunctionDeclaration(t *testing.T) {
	in := newTestInstrumenter()
	source := "function f(a,b){ return a+b; }"

	out, err := in.Instrument(context.Background(), []byte(source), "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{`"f_entry"`, `"f_param_a"`, `"f_param_b"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s:\n%s", want, out)
		}
	}
	if !strings.Contains(out, `twiz("f_param_a", a,`) {
		t.Errorf("expected parameter value capture for a:\n%s", out)
	}
	if !strings.Contains(out, "return a+b;") {
		t.Errorf("original body lost:\n%s", out)
	}
	if !strings.Contains(out, `"context":"function_declaration_parameter"`) {
		t.Errorf("expected declaration context tag:\n%s", out)
	}
}

func TestInstrument_ExpressionArrowRewrite(t *testing.T) {
	in := newTestInstrumenter()
	source := "const f = x => x*2;"

	out, err := in.Instrument(context.Background(), []byte(source), "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, `x => {`) {
		t.Errorf("expected block rewrite of expression body:\n%s", out)
	}
	if !strings.Contains(out, `twiz("f_param_x", x,`) {
		t.Errorf("expected parameter record:\n%s", out)
	}
	if !strings.Contains(out, "return x*2; }") {
		t.Errorf("expected return of original expression:\n%s", out)
	}
	if !strings.Contains(out, `"context":"arrow_function_parameter"`) {
		t.Errorf("expected arrow context tag:\n%s", out)
	}
}

func TestInstrument_CallbackArgument(t *testing.T) {
	in := newTestInstrumenter()
	source := "createRoutine('T', payload => ({ x: payload.x }));"

	out, err := in.Instrument(context.Background(), []byte(source), "src/routine.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, `"createRoutine_arg1_param_payload"`) {
		t.Errorf("expected callback parameter label:\n%s", out)
	}
	if !strings.Contains(out, `"calleeName":"createRoutine"`) {
		t.Errorf("expected callee name metadata:\n%s", out)
	}
	if !strings.Contains(out, `"calleeArgIndex":1`) {
		t.Errorf("expected callee arg index metadata:\n%s", out)
	}
	if !strings.Contains(out, `"context":"callback_argument_parameter"`) {
		t.Errorf("expected callback context tag:\n%s", out)
	}
}

func TestInstrument_MemberCalleeCallback(t *testing.T) {
	in := newTestInstrumenter()
	source := "items.map(x => x + 1);"

	out, err := in.Instrument(context.Background(), []byte(source), "src/list.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"items.map_arg0_param_x"`) {
		t.Errorf("expected member-chain callee label:\n%s", out)
	}
	if !strings.Contains(out, `"calleeName":"items.map"`) {
		t.Errorf("expected member-chain callee name:\n%s", out)
	}
}

func TestInstrument_ClassMethodsAndConstructor(t *testing.T) {
	in := newTestInstrumenter()
	source := `class Account {
	constructor(owner) { this.owner = owner; }
	deposit(amount) { return amount; }
}`

	out, err := in.Instrument(context.Background(), []byte(source), "src/account.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"constructor_param_owner"`) {
		t.Errorf("expected constructor parameter label:\n%s", out)
	}
	if !strings.Contains(out, `"context":"constructor_parameter"`) {
		t.Errorf("expected constructor context tag:\n%s", out)
	}
	if !strings.Contains(out, `"deposit_param_amount"`) {
		t.Errorf("expected method parameter label:\n%s", out)
	}
	if !strings.Contains(out, `"context":"class_method_parameter"`) {
		t.Errorf("expected class method context tag:\n%s", out)
	}
}

func TestInstrument_TypeScriptParameterProperty(t *testing.T) {
	in := newTestInstrumenter()
	source := `class Service {
	constructor(private repo: Repo, public readonly limit: number = 10) {}
}`

	out, err := in.Instrument(context.Background(), []byte(source), "src/service.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"constructor_param_repo"`) {
		t.Errorf("expected parameter-property record:\n%s", out)
	}
	if !strings.Contains(out, `"accessibility":"private"`) {
		t.Errorf("expected private accessibility:\n%s", out)
	}
	if !strings.Contains(out, `"parameterType":"annotated"`) {
		t.Errorf("expected annotated parameter type:\n%s", out)
	}
	if !strings.Contains(out, `"hasDefault":true`) {
		t.Errorf("expected default flag for limit:\n%s", out)
	}
}

func TestInstrument_DestructuredParameters(t *testing.T) {
	in := newTestInstrumenter()
	source := "function draw({x, y}, [a, b]) { return x; }"

	out, err := in.Instrument(context.Background(), []byte(source), "src/draw.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"draw_param_destructured_object"`) {
		t.Errorf("expected synthetic object name:\n%s", out)
	}
	if !strings.Contains(out, "{x: x, y: y}") {
		t.Errorf("expected rebuilt object value:\n%s", out)
	}
	if !strings.Contains(out, `"draw_param_destructured_array"`) {
		t.Errorf("expected synthetic array name:\n%s", out)
	}
	if !strings.Contains(out, "[a, b]") {
		t.Errorf("expected rebuilt array value:\n%s", out)
	}
	if !strings.Contains(out, `"isDestructured":true`) {
		t.Errorf("expected destructured flag:\n%s", out)
	}
}

func TestInstrument_RestAndDefault(t *testing.T) {
	in := newTestInstrumenter()
	source := "function join(sep = ',', ...parts) { return parts.join(sep); }"

	out, err := in.Instrument(context.Background(), []byte(source), "src/join.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"join_param_sep"`) || !strings.Contains(out, `"hasDefault":true`) {
		t.Errorf("expected defaulted parameter record:\n%s", out)
	}
	if !strings.Contains(out, `"join_param_parts"`) || !strings.Contains(out, `"isRest":true`) {
		t.Errorf("expected rest parameter record:\n%s", out)
	}
}

func TestInstrument_ObjectMethod(t *testing.T) {
	in := newTestInstrumenter()
	source := "const api = { greet(name) { return name; }, send: (msg) => msg };"

	out, err := in.Instrument(context.Background(), []byte(source), "src/api.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"greet_param_name"`) {
		t.Errorf("expected object method parameter:\n%s", out)
	}
	if !strings.Contains(out, `"send_param_msg"`) {
		t.Errorf("expected function-valued property parameter:\n%s", out)
	}
	if !strings.Contains(out, `"context":"object_method_parameter"`) {
		t.Errorf("expected object method context tag:\n%s", out)
	}
}

func TestInstrument_EntryRecordCarriesParamCount(t *testing.T) {
	in := newTestInstrumenter()
	source := "function f(a, b, c) { return a; }"

	out, err := in.Instrument(context.Background(), []byte(source), "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `twiz("f_entry", 3, 0,`) {
		t.Errorf("expected entry record with declared parameter count:\n%s", out)
	}
	if !strings.Contains(out, `"context":"function_entry"`) {
		t.Errorf("expected entry context tag:\n%s", out)
	}
}

func TestInstrument_Deterministic(t *testing.T) {
	in := newTestInstrumenter()
	source := []byte(`function f(a) { return a; }
const g = (x, y) => x + y;
items.forEach(item => { use(item); });`)

	first, err := in.Instrument(context.Background(), source, "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := in.Instrument(context.Background(), source, "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Error("instrumentation is not deterministic")
	}
}

func TestInstrument_PreservesLineNumbers(t *testing.T) {
	in := NewInstrumenter() // prelude on
	source := "function f(a) {\n  return a;\n}\nconst g = x => x;\n"

	out, err := in.Instrument(context.Background(), []byte(source), "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(out, "\n") != strings.Count(source, "\n") {
		t.Errorf("line count changed: %d -> %d", strings.Count(source, "\n"), strings.Count(out, "\n"))
	}
	// The original second line must still be the second line.
	lines := strings.Split(out, "\n")
	if lines[1] != "  return a;" {
		t.Errorf("line 2 shifted: %q", lines[1])
	}
}

func TestInstrument_UnparseableReturnsOriginal(t *testing.T) {
	in := newTestInstrumenter()
	source := "function ((((" // hopeless

	out, err := in.Instrument(context.Background(), []byte(source), "src/broken.js")
	if !errors.Is(err, ErrSourceUnparseable) {
		t.Fatalf("expected ErrSourceUnparseable, got %v", err)
	}
	if out != source {
		t.Errorf("expected original source verbatim, got:\n%s", out)
	}
}

func TestInstrument_TooLargeReturnsOriginal(t *testing.T) {
	in := NewInstrumenter(WithPrelude(false), WithMaxFileSize(10))
	source := "function f(a) { return a; }"

	out, err := in.Instrument(context.Background(), []byte(source), "src/app.js")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if out != source {
		t.Error("expected original source verbatim")
	}
}

func TestInstrument_OffsetsAreOriginalSourceBytes(t *testing.T) {
	in := newTestInstrumenter()
	source := "function f(a) { return a; }"
	// "a" is at byte offset 11.

	out, err := in.Instrument(context.Background(), []byte(source), "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `twiz("f_param_a", a, 11,`) {
		t.Errorf("expected original byte offset 11 for parameter a:\n%s", out)
	}
}

func TestInstrument_CustomGlobalName(t *testing.T) {
	in := NewInstrumenter(WithPrelude(false), WithGlobalName("__profile"))
	source := "function f(a) { return a; }"

	out, err := in.Instrument(context.Background(), []byte(source), "src/app.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `__profile("f_param_a"`) {
		t.Errorf("expected custom entry point name:\n%s", out)
	}
	if strings.Contains(out, "twiz(") {
		t.Errorf("default name leaked:\n%s", out)
	}
}
