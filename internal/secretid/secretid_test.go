package secretid

import (
	"strings"
	"testing"
)

func TestGenerate_ShapeAndAlphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if len(id) != Length {
			t.Fatalf("expected length %d, got %d (%q)", Length, len(id), id)
		}
		for _, c := range id {
			if !strings.ContainsRune(Alphabet, c) {
				t.Fatalf("id %q contains %q outside alphabet", id, c)
			}
		}
		if !IsValid(id) {
			t.Fatalf("generated id %q failed IsValid", id)
		}
	}
}

func TestGenerate_NotConstant(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := Generate()
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		seen[id] = true
	}
	if len(seen) < 50 {
		t.Fatalf("expected 50 distinct ids, got %d", len(seen))
	}
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid all digits", "0123456789", true},
		{"valid all letters", "abcdefghij", true},
		{"valid mixed", "a1b2c3d4e5", true},
		{"empty", "", false},
		{"too short", "abc123", false},
		{"too long", "abcdefghijk", false},
		{"uppercase", "ABCDEFGHIJ", false},
		{"hyphen", "abcde-ghij", false},
		{"space", "abcde ghij", false},
		{"unicode", "abcdefghié", false},
		{"underscore", "abcdefghi_", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValid(tc.input); got != tc.want {
				t.Fatalf("IsValid(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	f := NewFilter(1000, 0.001)
	f.Prime([]string{"aaaaaaaaaa", "bbbbbbbbbb"})

	if !f.MayExist("aaaaaaaaaa") {
		t.Fatal("primed id reported absent")
	}

	f.Add("cccccccccc")
	if !f.MayExist("cccccccccc") {
		t.Fatal("added id reported absent")
	}
}

func TestFilter_ConcurrentAddAndTest(t *testing.T) {
	f := NewFilter(10000, 0.001)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			id, err := Generate()
			if err != nil {
				t.Errorf("Generate: %v", err)
				return
			}
			f.Add(id)
			if !f.MayExist(id) {
				t.Errorf("id %q absent right after Add", id)
				return
			}
		}
	}()
	for i := 0; i < 1000; i++ {
		f.MayExist("zzzzzzzzzz")
	}
	<-done
}
