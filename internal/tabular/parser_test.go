package tabular

import "testing"

func TestParse_Basic(t *testing.T) {
	text := "stop_id,stop_name,stop_lat\n100,Main St,44.97\n200,Oak Ave,44.95\n"
	rows := Parse(text)
	if len(rows) != 2 {
		t.Fatalf("Parse() returned %d rows, want 2", len(rows))
	}
	if got := rows[0].Get("stop_id"); got != "100" {
		t.Errorf("rows[0].Get('stop_id') = %q, want '100'", got)
	}
	if got := rows[1].Get("stop_name"); got != "Oak Ave" {
		t.Errorf("rows[1].Get('stop_name') = %q, want 'Oak Ave'", got)
	}
}

func TestParse_QuotedCommas(t *testing.T) {
	text := `stop_id,stop_name
100,"Main St, Suite B"
200,"Oak, Elm, and 3rd"`
	rows := Parse(text)
	if len(rows) != 2 {
		t.Fatalf("Parse() returned %d rows, want 2", len(rows))
	}
	if got := rows[0].Get("stop_name"); got != "Main St, Suite B" {
		t.Errorf("quoted field = %q, want 'Main St, Suite B'", got)
	}
	if got := rows[1].Get("stop_name"); got != "Oak, Elm, and 3rd" {
		t.Errorf("quoted field = %q, want 'Oak, Elm, and 3rd'", got)
	}
}

func TestParse_QuotedHeaders(t *testing.T) {
	text := "\"stop_id\",\"stop_name\"\n1,Depot\n"
	rows := Parse(text)
	if len(rows) != 1 {
		t.Fatalf("Parse() returned %d rows, want 1", len(rows))
	}
	if !rows[0].Has("stop_id") {
		t.Error("header quotes should be stripped")
	}
	if got := rows[0].Get("stop_id"); got != "1" {
		t.Errorf("Get('stop_id') = %q, want '1'", got)
	}
}

func TestParse_BlankLines(t *testing.T) {
	text := "\n\nid,name\n\n1,a\n   \n2,b\n\n"
	rows := Parse(text)
	if len(rows) != 2 {
		t.Fatalf("Parse() returned %d rows, want 2", len(rows))
	}
	if rows[0].Get("id") != "1" || rows[1].Get("id") != "2" {
		t.Errorf("rows = %v, %v", rows[0].values, rows[1].values)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, text := range []string{"", "\n\n", "   \n\t\n", "id,name\n"} {
		if rows := Parse(text); len(rows) != 0 {
			t.Errorf("Parse(%q) returned %d rows, want 0", text, len(rows))
		}
	}
}

func TestParse_ShortRows(t *testing.T) {
	text := "a,b,c\n1,2\n"
	rows := Parse(text)
	if len(rows) != 1 {
		t.Fatalf("Parse() returned %d rows, want 1", len(rows))
	}
	if got := rows[0].Get("c"); got != "" {
		t.Errorf("missing trailing field should be empty, got %q", got)
	}
	if !rows[0].Has("c") {
		t.Error("short row should still carry all headers")
	}
}

func TestParse_CRLF(t *testing.T) {
	text := "id,name\r\n1,Depot\r\n"
	rows := Parse(text)
	if len(rows) != 1 {
		t.Fatalf("Parse() returned %d rows, want 1", len(rows))
	}
	if got := rows[0].Get("name"); got != "Depot" {
		t.Errorf("Get('name') = %q, want 'Depot' (CR should be stripped)", got)
	}
}

func TestRow_Headers(t *testing.T) {
	rows := Parse("c,a,b\n1,2,3\n")
	if len(rows) != 1 {
		t.Fatal("want 1 row")
	}
	h := rows[0].Headers()
	want := []string{"c", "a", "b"}
	for i := range want {
		if h[i] != want[i] {
			t.Fatalf("Headers() = %v, want %v", h, want)
		}
	}
}
