package planner

import (
	"reflect"
	"testing"
)

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"env": "prod", "table": "users"}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bound", "SELECT * FROM ${table}", "SELECT * FROM users"},
		{"binding beats default", "${env|dev}", "prod"},
		{"default used", "${region|us-east-1}", "us-east-1"},
		{"unbound left intact", "${missing}", "${missing}"},
		{"multiple", "${env}/${table}", "prod/users"},
		{"no placeholders", "SELECT 1", "SELECT 1"},
		{"empty default resolves empty", "x${missing|}y", "xy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Substitute(tc.in, vars)
			if got != tc.want {
				t.Errorf("Substitute(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestUnresolvedVariables(t *testing.T) {
	vars := map[string]string{"env": "prod"}
	text := "${env} ${missing} ${also_missing} ${missing} ${has|default}"
	got := UnresolvedVariables(text, vars)
	want := []string{"missing", "also_missing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnresolvedVariables = %v, want %v", got, want)
	}
}

func TestUnquoteValue(t *testing.T) {
	cases := map[string]string{
		`"analytics"`: "analytics",
		`analytics`:   "analytics",
		`"a" or "b"`:  `a" or "b`,
		`"`:           `"`,
		``:            ``,
	}
	for in, want := range cases {
		if got := UnquoteValue(in); got != want {
			t.Errorf("UnquoteValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMergeVariables_Precedence(t *testing.T) {
	environ := []string{
		"SQLFLOW_VAR_env=env_value",
		"SQLFLOW_VAR_only_env=from_env",
		"PATH=/usr/bin",
		"SQLFLOW_VAR_=ignored",
	}
	profile := map[string]string{"env": "profile_value", "only_profile": "from_profile"}
	cli := map[string]string{"env": "cli_value"}

	merged := MergeVariables(cli, profile, environ)

	if merged["env"] != "cli_value" {
		t.Errorf("CLI should win: got %q", merged["env"])
	}
	if merged["only_profile"] != "from_profile" {
		t.Errorf("profile value missing: %v", merged)
	}
	if merged["only_env"] != "from_env" {
		t.Errorf("env value missing: %v", merged)
	}
	if _, ok := merged["PATH"]; ok {
		t.Error("non-prefixed env var leaked into variables")
	}
	if _, ok := merged[""]; ok {
		t.Error("empty variable name accepted")
	}
}

func TestEvalCondition(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{`prod == "prod"`, true},
		{`prod == "dev"`, false},
		{`prod != "dev"`, true},
		{`1 == 1`, true},
		{`2 > 1`, true},
		{`1 >= 1`, true},
		{`10 < 9`, false},
		{`1.5 <= 2`, true},
		// Numeric compare when both sides parse as numbers.
		{`010 == 10`, true},
		{`"a" < "b"`, true},
		{`true`, true},
		{`false`, false},
		{`0`, false},
		{`NOT false`, true},
		{`1 == 1 AND 2 == 2`, true},
		{`1 == 2 OR 2 == 2`, true},
		{`1 == 2 AND 2 == 2`, false},
		{`(1 == 2 OR 2 == 2) AND true`, true},
		{`NOT (1 == 1)`, false},
		{`and_table == and_table`, true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := EvalCondition(tc.expr)
			if err != nil {
				t.Fatalf("EvalCondition(%q) failed: %v", tc.expr, err)
			}
			if got != tc.want {
				t.Errorf("EvalCondition(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestEvalCondition_Errors(t *testing.T) {
	for _, expr := range []string{"", "1 ==", "(1 == 1", "'unterminated", "1 = 1"} {
		if _, err := EvalCondition(expr); err == nil {
			t.Errorf("EvalCondition(%q) should fail", expr)
		}
	}
}
