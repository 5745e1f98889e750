package postgres

import "testing"

func TestDialect(t *testing.T) {
	if got := Dialect.QuoteIdentifier("Users"); got != `"Users"` {
		t.Errorf("QuoteIdentifier = %s; want \"Users\"", got)
	}
	if got := Dialect.QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdentifier = %s", got)
	}
	if got := Dialect.Placeholder(2); got != "$2" {
		t.Errorf("Placeholder(2) = %s; want $2", got)
	}
}
