package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseOCRRect(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    *[4]int
		wantErr bool
	}{
		{name: "empty means no rect", in: "", want: nil},
		{name: "whitespace only", in: "   ", want: nil},
		{name: "plain", in: "10,20,300,40", want: &[4]int{10, 20, 300, 40}},
		{name: "spaces around components", in: " 0 , 0 , 1920 , 80 ", want: &[4]int{0, 0, 1920, 80}},
		{name: "too few components", in: "1,2,3", wantErr: true},
		{name: "non-integer component", in: "1,2,x,4", wantErr: true},
		{name: "zero width", in: "1,2,0,4", wantErr: true},
		{name: "negative height", in: "1,2,3,-4", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseOCRRect(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOCRRect(%q): %v", tc.in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parseOCRRect(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestReadExclusionList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.txt")
	content := "recording in progress\n\n# watermark lines\n  LIVE  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readExclusionList(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"recording in progress", "LIVE"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestReadExclusionListEmptyPath(t *testing.T) {
	got, err := readExclusionList("  ")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for empty path, got %v", got)
	}
}

func TestReadExclusionListMissingFile(t *testing.T) {
	if _, err := readExclusionList(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this line is too long", 10, "this line…"},
		{"héllo wörld", 6, "héllo…"},
		{"anything", 0, ""},
	}
	for _, tc := range cases {
		if got := truncateRunes(tc.in, tc.max); got != tc.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestTailLines(t *testing.T) {
	in := []string{"a", "b", "c", "d"}
	if got := tailLines(in, 2); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Fatalf("tailLines = %v", got)
	}
	if got := tailLines(in, 10); !reflect.DeepEqual(got, in) {
		t.Fatalf("tailLines with large n = %v", got)
	}
}
