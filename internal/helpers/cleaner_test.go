package helpers

import "testing"

func TestExtractJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"domain":"weather"}`, `{"domain":"weather"}`},
		{"fenced", "```json\n{\"a\":[1,2]}\n```", `{"a":[1,2]}`},
		{"prose around", `Sure! {"a":"}"} trailing`, `{"a":"}"}`},
		{"array", `noise [1,{"b":2}] more`, `[1,{"b":2}]`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractJSON(tt.in)
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONNoValue(t *testing.T) {
	t.Parallel()
	if _, err := ExtractJSON("no json here {"); err != ErrNoJSON {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}
