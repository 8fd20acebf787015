package domain

import "testing"

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{67000.1, "$67,000.10"},
		{1234567.891, "$1,234,567.89"},
		{0, "$0.00"},
		{0.4213, "$0.4213"},
		{0.5, "$0.50"},
		{0.000045, "$0.000045"},
		{-1500, "-$1,500.00"},
	}
	for _, tt := range tests {
		if got := FormatCurrency(tt.in); got != tt.want {
			t.Errorf("FormatCurrency(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatLargeNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.5e12, "$2.50T"},
		{3.1e9, "$3.10B"},
		{4.25e6, "$4.25M"},
		{1500, "$1.50K"},
		{999, "$999.00"},
	}
	for _, tt := range tests {
		if got := FormatLargeNumber(tt.in); got != tt.want {
			t.Errorf("FormatLargeNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPercentage(t *testing.T) {
	if got := FormatPercentage(1.234); got != "+1.23%" {
		t.Errorf("got %q", got)
	}
	if got := FormatPercentage(-0.5); got != "-0.50%" {
		t.Errorf("got %q", got)
	}
	if got := FormatPercentage(0); got != "+0.00%" {
		t.Errorf("got %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("oanda:xau_usd"); got != "Gold (XAU/USD)" {
		t.Errorf("got %q", got)
	}
	if got := DisplayName("AAPL"); got != "AAPL" {
		t.Errorf("got %q", got)
	}
}
