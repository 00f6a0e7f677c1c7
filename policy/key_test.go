package policy

import "testing"

func TestParseKey_Cases(t *testing.T) {
	cases := []struct {
		input string
		want  PolicyKey
	}{
		{input: "", want: PolicyKey{}},
		{input: "catalog", want: PolicyKey{Name: "catalog"}},
		{input: "dbinit.catalog", want: PolicyKey{Namespace: "dbinit", Name: "catalog"}},
		{input: " dbinit.catalog ", want: PolicyKey{Namespace: "dbinit", Name: "catalog"}},
		{input: "dbinit.", want: PolicyKey{Name: "dbinit."}},
		{input: ".catalog", want: PolicyKey{Name: "catalog"}},
		{input: "dbinit . catalog", want: PolicyKey{Namespace: "dbinit", Name: "catalog"}},
		{input: "dbinit.catalog.v2", want: PolicyKey{Namespace: "dbinit", Name: "catalog.v2"}},
	}

	for _, tc := range cases {
		if got := ParseKey(tc.input); got != tc.want {
			t.Fatalf("ParseKey(%q) = %+v, want %+v", tc.input, got, tc.want)
		}
	}
}

func TestPolicyKey_String(t *testing.T) {
	cases := []struct {
		key  PolicyKey
		want string
	}{
		{key: PolicyKey{}, want: ""},
		{key: PolicyKey{Name: "catalog"}, want: "catalog"},
		{key: PolicyKey{Namespace: "dbinit"}, want: "dbinit"},
		{key: PolicyKey{Namespace: "dbinit", Name: "catalog"}, want: "dbinit.catalog"},
	}

	for _, tc := range cases {
		if got := tc.key.String(); got != tc.want {
			t.Fatalf("String(%+v) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
