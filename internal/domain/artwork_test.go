package domain

import "testing"

func TestStyleValid(t *testing.T) {
	for _, style := range Styles {
		if !style.Valid() {
			t.Errorf("Valid(%q) = false", style)
		}
	}
	if Style("dramatic").Valid() {
		t.Error("unknown style reported valid")
	}
}

func TestNarrationFor(t *testing.T) {
	artwork := &Artwork{
		DescriptionProfessional: "专业版",
		DescriptionCasual:       "趣解版",
	}

	if got := artwork.NarrationFor(StyleProfessional); got != "专业版" {
		t.Errorf("professional = %q", got)
	}
	if got := artwork.NarrationFor(StyleCasual); got != "趣解版" {
		t.Errorf("casual = %q", got)
	}
	if got := artwork.NarrationFor(Style("dramatic")); got != "" {
		t.Errorf("unknown style = %q, want empty", got)
	}
}

func TestCatalogued(t *testing.T) {
	if (&Artwork{}).Catalogued() {
		t.Error("artwork without an ID reported catalogued")
	}
	if !(&Artwork{ID: "id-1"}).Catalogued() {
		t.Error("artwork with an ID reported uncatalogued")
	}
	var nilArtwork *Artwork
	if nilArtwork.Catalogued() {
		t.Error("nil artwork reported catalogued")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	v := Vector{0.25, -1, 3.5}

	value, err := v.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned Vector
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(scanned) != len(v) {
		t.Fatalf("length = %d, want %d", len(scanned), len(v))
	}
	for i := range v {
		if scanned[i] != v[i] {
			t.Errorf("scanned[%d] = %v, want %v", i, scanned[i], v[i])
		}
	}

	// Empty vectors store as NULL.
	value, err = Vector(nil).Value()
	if err != nil {
		t.Fatalf("Value(nil): %v", err)
	}
	if value != nil {
		t.Errorf("empty vector Value = %v, want nil", value)
	}
}
