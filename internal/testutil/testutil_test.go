package testutil

import "testing"

type pair struct {
	Key   string
	Value string
}

type withIgnore struct {
	A int
	B string `deepequal:"ignore"`
}

func TestDeepEqualBasics(t *testing.T) {
	cases := []struct {
		name string
		a, b interface{}
		want bool
	}{
		{"equal strings", "a", "a", true},
		{"different strings", "a", "b", false},
		{"equal slices", []pair{{"a", "1"}}, []pair{{"a", "1"}}, true},
		{"different slice length", []pair{{"a", "1"}}, []pair{}, false},
		{"equal maps", map[string]string{"a": "1"}, map[string]string{"a": "1"}, true},
		{"different map value", map[string]string{"a": "1"}, map[string]string{"a": "2"}, false},
		{"nil vs non-nil", nil, "a", false},
		{"both nil", nil, nil, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DeepEqual(c.a, c.b); got != c.want {
				t.Errorf("DeepEqual(%v, %v) = %v, want %v (diff: %s)", c.a, c.b, got, c.want, Diff(c.a, c.b))
			}
		})
	}
}

func TestDiffIgnoreTag(t *testing.T) {
	a := withIgnore{A: 1, B: "x"}
	b := withIgnore{A: 1, B: "y"}
	if d := Diff(a, b); d != "" {
		t.Fatalf("expected ignored field to suppress diff, got %q", d)
	}

	c := withIgnore{A: 2, B: "x"}
	if d := Diff(a, c); d == "" {
		t.Fatalf("expected diff on non-ignored field A")
	}
}

func TestPrettyPrint(t *testing.T) {
	got := PrettyPrint(pair{"a", "1"})
	want := `testutil.pair{Key:"a", Value:"1"}`
	if got != want {
		t.Fatalf("PrettyPrint = %q, want %q", got, want)
	}
}
