package cellref

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		sheet   string
		address string
		want    Reference
		wantErr bool
	}{
		{
			name:    "simple",
			sheet:   "Model",
			address: "B7",
			want:    Reference{Sheet: "Model", Address: "B7", Row: 7, Column: 2},
		},
		{
			name:    "lowercase and anchors are normalized",
			sheet:   "Model",
			address: "$aa$10",
			want:    Reference{Sheet: "Model", Address: "AA10", Row: 10, Column: 27},
		},
		{
			name:    "empty sheet falls back to default",
			address: "A1",
			want:    Reference{Sheet: DefaultSheet, Address: "A1", Row: 1, Column: 1},
		},
		{name: "empty address", sheet: "Model", address: "", wantErr: true},
		{name: "not an address", sheet: "Model", address: "Revenue", wantErr: true},
		{name: "row zero", sheet: "Model", address: "A0", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.sheet, tc.address)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q, %q) expected error, got %+v", tc.sheet, tc.address, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q, %q) unexpected error: %v", tc.sheet, tc.address, err)
			}
			if got != tc.want {
				t.Errorf("Parse(%q, %q) = %+v, want %+v", tc.sheet, tc.address, got, tc.want)
			}
		})
	}
}

func TestParseQualified(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{ref: "A1", want: "Inputs!A1"},
		{ref: "Debt!c4", want: "Debt!C4"},
		{ref: "'Sources & Uses'!$B$2", want: "Sources & Uses!B2"},
		{ref: "'Owner''s Equity'!D9", want: "Owner's Equity!D9"},
	}

	for _, tc := range tests {
		t.Run(tc.ref, func(t *testing.T) {
			got, err := ParseQualified(tc.ref, "Inputs")
			if err != nil {
				t.Fatalf("ParseQualified(%q) error: %v", tc.ref, err)
			}
			if got.ID() != tc.want {
				t.Errorf("ParseQualified(%q).ID() = %q, want %q", tc.ref, got.ID(), tc.want)
			}
		})
	}
}

func TestFromCoordinates(t *testing.T) {
	ref, err := FromCoordinates("Model", 28, 3)
	if err != nil {
		t.Fatalf("FromCoordinates error: %v", err)
	}
	if ref.Address != "AB3" {
		t.Errorf("Address = %q, want AB3", ref.Address)
	}
	if ref.ColumnName() != "AB" {
		t.Errorf("ColumnName() = %q, want AB", ref.ColumnName())
	}
	if _, err := FromCoordinates("Model", 0, 1); err == nil {
		t.Error("expected error for column 0")
	}
}

func TestReferenceIsComparable(t *testing.T) {
	a := MustParse("Model", "$B$2")
	b := MustParse("Model", "b2")
	if a != b {
		t.Errorf("expected %v == %v", a, b)
	}
	if a.IsZero() {
		t.Error("parsed reference should not be zero")
	}
	if !(Reference{}).IsZero() {
		t.Error("zero Reference should report IsZero")
	}
}
