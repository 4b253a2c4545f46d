package main

import "testing"

func TestParsePoint(t *testing.T) {
	x, y, err := parsePoint("12.5, 40")
	if err != nil {
		t.Fatalf("parsePoint: %v", err)
	}
	if x != 12.5 || y != 40 {
		t.Errorf("got %v,%v want 12.5,40", x, y)
	}

	for _, bad := range []string{"", "1", "a,2", "1,b", "1,2,3"} {
		if _, _, err := parsePoint(bad); err == nil {
			t.Errorf("parsePoint(%q) expected error", bad)
		}
	}
}
