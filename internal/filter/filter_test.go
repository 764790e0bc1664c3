package filter

import (
	"errors"
	"strings"
	"testing"
)

func TestArity(t *testing.T) {
	a := Variable{Name: "a"}
	b := Variable{Name: "b"}

	tests := []struct {
		name    string
		build   func() error
		wantErr bool
	}{
		{"and with two", func() error { _, err := NewLogical(And, a, b); return err }, false},
		{"and with one", func() error { _, err := NewLogical(And, a); return err }, true},
		{"or with none", func() error { _, err := NewLogical(Or); return err }, true},
		{"not with one", func() error { _, err := NewLogical(Not, a); return err }, false},
		{"not with two", func() error { _, err := NewLogical(Not, a, b); return err }, true},
		{"in with two", func() error { _, err := NewFunctional(In, a, Value{V: 1}); return err }, false},
		{"in with one", func() error { _, err := NewFunctional(In, a); return err }, true},
		{"relational with three", func() error {
			_, err := NewRelationalFrom(Is, []Operand{a, b, a})
			return err
		}, true},
		{"relational with two", func() error {
			_, err := NewRelationalFrom(Is, []Operand{a, b})
			return err
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOperandCount) {
				t.Errorf("error = %v, want ErrInvalidOperandCount", err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	and, err := NewLogical(And, Variable{Name: "a"}, Variable{Name: "b"})
	if err != nil {
		t.Fatal(err)
	}
	size := NewRelational(GreaterThan, Variable{Name: "size"}, Value{V: 1000})
	in, err := NewFunctional(In, Variable{Name: "subject"}, Value{V: "x"}, Value{V: "y"})
	if err != nil {
		t.Fatal(err)
	}
	or, err := NewLogical(Or, and, size)
	if err != nil {
		t.Fatal(err)
	}
	not, err := NewLogical(Not, in)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		expr   Expression
		infix  string
		polish string
	}{
		{"and", and, "(a&&b)", "&& a b"},
		{"relational", size, "(size>1000)", "> size 1000"},
		{"in", in, "IN(subject, x, y)", "IN subject x y"},
		{"nested", or, "((a&&b)||(size>1000))", "|| && a b > size 1000"},
		{"not", not, "!(IN(subject, x, y))", "! IN subject x y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.String(); got != tt.infix {
				t.Errorf("String() = %q, want %q", got, tt.infix)
			}
			if got := Polish.Render(tt.expr); got != tt.polish {
				t.Errorf("Polish.Render() = %q, want %q", got, tt.polish)
			}
		})
	}
}

func TestParse(t *testing.T) {
	attrs := []string{"size", "subject", "id", "seen"}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{"equals", `{"=":{"size":1000}}`, "(size==1000)", ""},
		{"double equals", `{"==":{"subject":"hi"}}`, "(subject==hi)", ""},
		{"in", `{"IN":{"id":["1","2"]}}`, "IN(id, 1, 2)", ""},
		{"or", `{"OR":[{"=":{"size":1000}},{">":{"size":5}}]}`, "((size==1000)||(size>5))", ""},
		{"pipes", `{"||":[{"<=":{"size":1}},{"!=":{"seen":true}}]}`, "((size<=1)||(seen!=true))", ""},
		{"not", `{"NOT":{"=":{"seen":true}}}`, "!((seen==true))", ""},
		{"implicit and", `{"=":{"size":1},">=":{"id":5}}`, "((size==1)&&(id>=5))", ""},
		{"no operator", `{"size":1000}`, "", `"size" is not a valid operator`},
		{"too few operands", `{"OR":[{"=":{"size":1000}}]}`, "", `"OR" expects at least 2 operands`},
		{"invalid attribute", `{"OR":[{"=":{"size":1000}},{">":{"IN":{"subject":["x"]}}}]}`, "", "needs a valid attribute"},
		{"unknown attribute", `{"=":{"date":1}}`, "", "needs a valid attribute"},
		{"invalid json", `{"=":`, "", "must be valid JSON"},
		{"not an object", `[1,2]`, "", "must be a non-empty JSON object"},
		{"list for relational", `{"=":{"size":[1]}}`, "", "expects a single value"},
		{"empty in", `{"IN":{"id":[]}}`, "", "non-empty list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse([]byte(tt.input), attrs)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Parse(%s) = %v, want error containing %q", tt.input, expr, tt.wantErr)
				}
				var syntaxErr *SyntaxError
				if !errors.As(err, &syntaxErr) {
					t.Errorf("error type = %T, want *SyntaxError", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%s) error = %v", tt.input, err)
			}
			if got := expr.String(); got != tt.want {
				t.Errorf("Parse(%s) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVariables(t *testing.T) {
	expr, err := Parse([]byte(`{"AND":[{"=":{"a":1}},{"IN":{"b":[1,2]}}]}`), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	got := Variables(expr)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Variables() = %v, want [a b]", got)
	}
}
