package types

import "testing"

func TestFormatCents(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		110000: "1100.00",
		199:    "1.99",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		if got := FormatCents(cents); got != want {
			t.Fatalf("FormatCents(%d) = %s, want %s", cents, got, want)
		}
	}
}
