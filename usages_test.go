package hid

import "testing"

func TestUsagePageName(t *testing.T) {
	tests := []struct {
		page uint16
		want string
	}{
		{0x0001, "Generic Desktop"},
		{0x000c, "Consumer"},
		{0xf1d0, "FIDO Alliance"},
		{0xff00, "Vendor Defined"},
		{0xffab, "Vendor Defined"},
		{0x1234, "0x1234"},
	}

	for _, tt := range tests {
		if got := UsagePageName(tt.page); got != tt.want {
			t.Errorf("UsagePageName(%#x) = %q, want %q", tt.page, got, tt.want)
		}
	}
}

func TestUsageName(t *testing.T) {
	if got := UsageName(0x0001, 0x06); got != "Keyboard" {
		t.Errorf("UsageName(generic desktop, 6) = %q, want Keyboard", got)
	}
	if got := UsageName(0x000c, 0x01); got != "0x0001" {
		t.Errorf("UsageName(consumer, 1) = %q, want numeric", got)
	}
}
