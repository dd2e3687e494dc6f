package uri

import "testing"

func TestParseS1(t *testing.T) {
	l, err := Parse("file=/tmp/t.sqlite|table=cities|geometrycolumn=geom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.DBFile != "file=/tmp/t.sqlite" || l.Table != "cities" || l.GeometryColumn != "geom" {
		t.Errorf("got %+v", l)
	}
	if l.Key != "" || l.Subset != "" {
		t.Errorf("expected no key/subset, got %+v", l)
	}
}

func TestParseAllFields(t *testing.T) {
	l, err := Parse("/tmp/t.sqlite|table=cities|geometrycolumn=geom|key=fid|sql=pop>1000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Key != "fid" || l.Subset != "pop>1000" {
		t.Errorf("got %+v", l)
	}
}

func TestParseSubqueryTable(t *testing.T) {
	l, err := Parse("/tmp/t.sqlite|table=(SELECT * FROM cities WHERE pop > 1000)|geometrycolumn=geom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.IsSubquery() {
		t.Error("expected the parenthesised table expression to be detected as a subquery")
	}
}

func TestParseMissingFields(t *testing.T) {
	cases := []string{
		"",
		"/tmp/t.sqlite",
		"/tmp/t.sqlite|geometrycolumn=geom",
		"/tmp/t.sqlite|table=cities",
		"/tmp/t.sqlite|table=cities|bogus=1|geometrycolumn=geom",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected an error", c)
		}
	}
}

func TestLayerString(t *testing.T) {
	l := Layer{DBFile: "/tmp/t.sqlite", Table: "cities", GeometryColumn: "geom", Key: "fid"}
	got := l.String()
	want := "/tmp/t.sqlite|table=cities|geometrycolumn=geom|key=fid"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
