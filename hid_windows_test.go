package hid

import (
	"bytes"
	"testing"
	"unsafe"

	"golang.org/x/sys/windows"
)

const missingDevicePath = `\\?\hid#vid_dead&pid_beef#nonexistent`

func TestSplitStringList(t *testing.T) {
	encode := func(strs ...string) []uint16 {
		var buf []uint16
		for _, s := range strs {
			u, _ := windows.UTF16FromString(s)
			buf = append(buf, u...)
		}
		return append(buf, 0)
	}

	tests := []struct {
		name string
		buf  []uint16
		want []string
	}{
		{"two ids", encode(`USB\Class_03&SubClass_01`, `USB\Class_03`), []string{`USB\Class_03&SubClass_01`, `USB\Class_03`}},
		{"single", encode("BTHLEDEVICE"), []string{"BTHLEDEVICE"}},
		{"empty", []uint16{0}, nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStringList(tt.buf)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d strings %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("string %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestInterfaceNumberFromPath(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{`\\?\hid#vid_046d&pid_c52b&mi_02&col01#8&2de99099&0&0000#{...}`, 2},
		{`\\?\hid#vid_046d&pid_c52b&MI_0a#8&2de99099&0&0000#{...}`, 10},
		{`\\?\hid#vid_046d&pid_c52b#8&2de99099&0&0000#{...}`, -1},
		{`\\?\hid#vid_046d&pid_c52b&mi_#...`, -1},
	}

	for _, tt := range tests {
		if got := interfaceNumberFromPath(tt.path); got != tt.want {
			t.Errorf("interfaceNumberFromPath(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestPadReport(t *testing.T) {
	scratch := make([]byte, 8)

	t.Run("short report is zero padded", func(t *testing.T) {
		data := []byte{0x01, 0xaa, 0xbb}
		got := padReport(data, scratch)
		want := []byte{0x01, 0xaa, 0xbb, 0, 0, 0, 0, 0}
		if !bytes.Equal(got, want) {
			t.Errorf("padReport = % x, want % x", got, want)
		}
		if !bytes.Equal(data, []byte{0x01, 0xaa, 0xbb}) {
			t.Errorf("caller's report modified: % x", data)
		}
	})

	t.Run("padding clears stale scratch bytes", func(t *testing.T) {
		for i := range scratch {
			scratch[i] = 0xff
		}
		got := padReport([]byte{0x02}, scratch)
		want := []byte{0x02, 0, 0, 0, 0, 0, 0, 0}
		if !bytes.Equal(got, want) {
			t.Errorf("padReport = % x, want % x", got, want)
		}
	})

	t.Run("full length report passes through", func(t *testing.T) {
		data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		if got := padReport(data, scratch); &got[0] != &data[0] {
			t.Error("full-length report was copied instead of passed through")
		}
	})

	t.Run("oversized report passes through", func(t *testing.T) {
		data := make([]byte, 16)
		if got := padReport(data, scratch); len(got) != 16 {
			t.Errorf("padReport truncated oversized report to %d bytes", len(got))
		}
	})
}

func TestStripReportID(t *testing.T) {
	tests := []struct {
		name  string
		src   []byte
		dst   int
		want  []byte
		wantN int
	}{
		{"leading zero stripped", []byte{0x00, 0xaa, 0xbb}, 8, []byte{0xaa, 0xbb}, 2},
		{"numbered report kept intact", []byte{0x01, 0xaa, 0xbb}, 8, []byte{0x01, 0xaa, 0xbb}, 3},
		{"clamped to destination", []byte{0x00, 1, 2, 3, 4}, 2, []byte{1, 2}, 2},
		{"empty report", nil, 8, nil, 0},
		{"bare zero id", []byte{0x00}, 8, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, tt.dst)
			n := stripReportID(dst, tt.src)
			if n != tt.wantN {
				t.Fatalf("stripReportID = %d bytes, want %d", n, tt.wantN)
			}
			if !bytes.Equal(dst[:n], tt.want) {
				t.Errorf("dst = % x, want % x", dst[:n], tt.want)
			}
		})
	}
}

func TestHidpCapsLayout(t *testing.T) {
	// HIDP_CAPS is 64 bytes in the Windows DDK; a drifted layout would
	// corrupt the report length fields.
	if size := unsafe.Sizeof(hidpCaps{}); size != 64 {
		t.Errorf("hidpCaps size = %d, want 64", size)
	}
}
