package utils

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1KB", 1024, false},
		{"10MB", 10 * 1024 * 1024, false},
		{"2GB", 2 * 1024 * 1024 * 1024, false},
		{" 5MB ", 5 * 1024 * 1024, false},
		{"10TB", 0, true},
		{"MB", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseSize(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"/abs/path/file.txt", "file.txt"},
		{`..\..\windows\system.ini`, "system.ini"},
		{"nested/dir/name.bin", "name.bin"},
	}
	for _, tc := range tests {
		if got := SanitizeFilename(tc.input); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range tests {
		if got := FormatBytes(tc.input); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestGetContentType(t *testing.T) {
	if got := GetContentType("x.unknownext"); got != "application/octet-stream" {
		t.Errorf("GetContentType fallback = %q", got)
	}
	if got := GetContentType("a.json"); got == "application/octet-stream" {
		t.Error("GetContentType(.json) should resolve a real MIME type")
	}
}
