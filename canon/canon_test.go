package canon

import "testing"

func TestJSONKeyOrderingDeterministic(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": 3}
	b := map[string]interface{}{"c": 3, "a": 2, "b": 1}

	ha, err := JSON(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := JSON(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(ha) != string(hb) {
		t.Errorf("expected identical canonical encodings, got %q and %q", ha, hb)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(ha) != want {
		t.Errorf("JSON() = %q, want %q", ha, want)
	}
}

func TestHashIdempotent(t *testing.T) {
	v := struct {
		Name string
		N    int
	}{"ctrl", 7}

	h1, err := Hash(v)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(v)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("Hash not idempotent: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestIsHexDigest256(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"valid", "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90", true},
		{"too short", "abc", false},
		{"uppercase", "A1B2C3D4E5F60718293A4B5C6D7E8F90A1B2C3D4E5F60718293A4B5C6D7E8F90", false},
		{"non-hex", "g1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHexDigest256(tt.in); got != tt.want {
				t.Errorf("IsHexDigest256(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
