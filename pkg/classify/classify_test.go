package classify

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   TagValue
		want ID
	}{
		{"motorway", Single("motorway"), Motorway},
		{"motorway link", Single("motorway_link"), Motorway},
		{"trunk", Single("trunk"), Primary},
		{"primary link", Single("primary_link"), Primary},
		{"secondary", Single("secondary"), Secondary},
		{"tertiary", Single("tertiary_link"), Tertiary},
		{"residential", Single("residential"), Residential},
		{"living street", Single("living_street"), Residential},
		{"footway", Single("footway"), Path},
		{"steps", Single("steps"), Path},
		{"explicit unclassified", Single("unclassified"), Unclassified},
		{"unknown", Single("made_up_tag"), Unclassified},
		{"empty string", Single(""), Unclassified},
		{"absent", Absent(), Unclassified},
		{"first of many", Multiple("primary", "unclassified"), Primary},
		{"first unknown", Multiple("bogus", "motorway"), Unclassified},
		{"empty list", Multiple(), Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in).ID; got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	in := Multiple("secondary", "primary")
	first := Classify(in)
	for range 100 {
		if diff := cmp.Diff(first, Classify(in)); diff != "" {
			t.Fatalf("Classify not stable (-first +again):\n%s", diff)
		}
	}
}

func TestParseTagValue(t *testing.T) {
	tests := []struct {
		in   any
		want ID
		abs  bool
	}{
		{nil, Unclassified, true},
		{"primary", Primary, false},
		{"footway;path", Path, false},
		{[]string{"motorway"}, Motorway, false},
		{[]any{"tertiary", 3}, Tertiary, false},
		{[]any{}, Unclassified, false},
		{42, Unclassified, false},
	}
	for _, tt := range tests {
		v := ParseTagValue(tt.in)
		if v.IsAbsent() != tt.abs {
			t.Errorf("ParseTagValue(%#v).IsAbsent() = %v, want %v", tt.in, v.IsAbsent(), tt.abs)
		}
		if got := Classify(v).ID; got != tt.want {
			t.Errorf("Classify(ParseTagValue(%#v)) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestClassifyAllMatchesClassify(t *testing.T) {
	values := []TagValue{
		Single("primary"),
		Absent(),
		Multiple("motorway", "primary"),
		Single("primary"),
		Single("weird"),
		Single("footway"),
		Multiple(),
	}
	cols := ClassifyAll(values)
	if cols.Len() != len(values) {
		t.Fatalf("Len() = %d, want %d", cols.Len(), len(values))
	}
	for i, v := range values {
		if diff := cmp.Diff(Classify(v), cols.Row(i)); diff != "" {
			t.Errorf("row %d (%v) (-want +got):\n%s", i, v, diff)
		}
	}

	want := []ID{Primary, Unclassified, Motorway, Primary, Unclassified, Path, Unclassified}
	if diff := cmp.Diff(want, cols.IDs); diff != "" {
		t.Errorf("IDs (-want +got):\n%s", diff)
	}
}

func TestClassifyAllEmpty(t *testing.T) {
	if n := ClassifyAll(nil).Len(); n != 0 {
		t.Errorf("ClassifyAll(nil).Len() = %d", n)
	}
}

func TestTable(t *testing.T) {
	all := Classes()
	for i := 1; i < len(all); i++ {
		if all[i].ZOrder <= all[i-1].ZOrder {
			t.Errorf("%s z-order %v should exceed %s %v", all[i].ID, all[i].ZOrder, all[i-1].ID, all[i-1].ZOrder)
		}
	}

	glow := map[ID]bool{}
	for _, c := range all {
		if c.GlowEligible {
			glow[c.ID] = true
		}
		if c.HasCasing() && c.CasingWidth <= c.CoreWidth {
			t.Errorf("%s casing %v should be wider than core %v", c.ID, c.CasingWidth, c.CoreWidth)
		}
	}
	if diff := cmp.Diff(map[ID]bool{Motorway: true, Primary: true, Secondary: true}, glow); diff != "" {
		t.Errorf("glow classes (-want +got):\n%s", diff)
	}

	path, _ := Lookup(Path)
	if path.HasCasing() {
		t.Error("paths should not have casing")
	}

	// Classes returns a copy.
	all[0].CoreWidth = 99
	if p, _ := Lookup(Path); p.CoreWidth == 99 {
		t.Error("Classes() should not expose the table")
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("tertiary"); err != nil || id != Tertiary {
		t.Errorf("ParseID(tertiary) = %v, %v", id, err)
	}
	if _, err := ParseID("highway"); err == nil {
		t.Error("ParseID(highway) should fail")
	}
}
