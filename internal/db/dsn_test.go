package db

import "testing"

func TestNormalizeDSN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/quoting?sslmode=disable", "postgres://u:p@localhost:5432/quoting?sslmode=disable"},
		{"  postgres://u:p@db/quoting  ", "postgres://u:p@db/quoting"},
		{`"postgres://u:p@db/quoting"`, "postgres://u:p@db/quoting"},
		{"host=localhost user=u dbname=quoting", "host=localhost user=u dbname=quoting sslmode=disable"},
		{"host=localhost   user=u  sslmode=require", "host=localhost user=u sslmode=require"},
		{"sqlite://data/app.db", "data/app.db"},
		{"file:test?mode=memory", "file:test?mode=memory"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeDSN(tc.in); got != tc.want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsSQLiteDSN(t *testing.T) {
	sqlite := []string{"sqlite://x.db", "file:mem?mode=memory", "app.db", "data.sqlite", ":memory:"}
	for _, dsn := range sqlite {
		if !IsSQLiteDSN(dsn) {
			t.Errorf("IsSQLiteDSN(%q) = false, want true", dsn)
		}
	}
	postgres := []string{"postgres://u@h/db", "host=localhost dbname=quoting"}
	for _, dsn := range postgres {
		if IsSQLiteDSN(dsn) {
			t.Errorf("IsSQLiteDSN(%q) = true, want false", dsn)
		}
	}
}
