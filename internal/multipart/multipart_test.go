package multipart

import (
	"bytes"
	"strings"
	"testing"
)

func buildBody(boundary string, parts ...string) []byte {
	var b bytes.Buffer
	for _, p := range parts {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString(p)
		b.WriteString("\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return b.Bytes()
}

func TestBoundaryFromContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        string
		wantErr     bool
	}{
		{"plain boundary", "multipart/form-data; boundary=xyz", "xyz", false},
		{"quoted boundary", `multipart/form-data; boundary="xyz"`, "xyz", false},
		{"extra params", "multipart/form-data; charset=utf-8; boundary=abc", "abc", false},
		{"no boundary", "multipart/form-data", "", true},
		{"empty boundary", "multipart/form-data; boundary=", "", true},
		{"not multipart", "application/json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BoundaryFromContentType(tt.contentType)
			if tt.wantErr {
				if err != ErrBoundaryMissing {
					t.Errorf("error = %v, want ErrBoundaryMissing", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("boundary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeTwoParts(t *testing.T) {
	body := buildBody("BOUND",
		"Content-Disposition: form-data; name=\"description\"\r\n\r\nholiday pictures",
		"Content-Disposition: form-data; name=\"file\"; filename=\"pic.jpg\"\r\nContent-Type: image/jpeg\r\n\r\n\xff\xd8\xff\xe0binary\x00data",
	)

	parts, err := Decode("multipart/form-data; boundary=BOUND", body)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}

	if parts[0].Name != "description" || parts[0].HasFilename {
		t.Errorf("part 0 = %+v, want form field 'description'", parts[0])
	}
	if string(parts[0].Content) != "holiday pictures" {
		t.Errorf("field content = %q", parts[0].Content)
	}

	if parts[1].Name != "file" || parts[1].Filename != "pic.jpg" {
		t.Errorf("part 1 = name %q filename %q", parts[1].Name, parts[1].Filename)
	}
	want := []byte("\xff\xd8\xff\xe0binary\x00data")
	if !bytes.Equal(parts[1].Content, want) {
		t.Errorf("file content = %q, want %q", parts[1].Content, want)
	}
}

func TestDecodeMissingBoundary(t *testing.T) {
	parts, err := Decode("multipart/form-data", []byte("whatever"))
	if err != ErrBoundaryMissing {
		t.Errorf("error = %v, want ErrBoundaryMissing", err)
	}
	if parts != nil {
		t.Errorf("parts = %v, want nil", parts)
	}
}

func TestDecodeBinaryWithBoundaryLikeContent(t *testing.T) {
	// Content containing a near-miss of the marker must stay intact;
	// only an exact marker match splits parts.
	content := "before --BOUN after \x00\x01\x02"
	body := buildBody("BOUND",
		"Content-Disposition: form-data; name=\"f\"; filename=\"a.bin\"\r\n\r\n"+content,
	)
	parts, err := Decode("multipart/form-data; boundary=BOUND", body)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	if string(parts[0].Content) != content {
		t.Errorf("content = %q, want %q", parts[0].Content, content)
	}
}

func TestDecodeDropsNamelessPart(t *testing.T) {
	body := buildBody("B",
		"Content-Disposition: form-data\r\n\r\norphan content",
		"Content-Disposition: form-data; name=\"kept\"\r\n\r\nvalue",
	)
	parts, err := Decode("multipart/form-data; boundary=B", body)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].Name != "kept" {
		t.Errorf("parts = %+v, want only 'kept'", parts)
	}
}

func TestFilePart(t *testing.T) {
	tests := []struct {
		name  string
		parts []Part
		want  string
		found bool
	}{
		{
			"file present",
			[]Part{
				{Name: "field", Content: []byte("v")},
				{Name: "file", Filename: "doc.pdf", HasFilename: true},
			},
			"doc.pdf", true,
		},
		{
			"empty filename means no file",
			[]Part{{Name: "file", Filename: "", HasFilename: true}},
			"", false,
		},
		{
			"no parts",
			nil,
			"", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := FilePart(tt.parts)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && p.Filename != tt.want {
				t.Errorf("filename = %q, want %q", p.Filename, tt.want)
			}
		})
	}
}

func TestField(t *testing.T) {
	parts := []Part{
		{Name: "a", Content: []byte("1")},
		{Name: "b", Filename: "x", HasFilename: true, Content: []byte("not a field")},
	}
	if v, ok := Field(parts, "a"); !ok || v != "1" {
		t.Errorf("Field(a) = %q, %v", v, ok)
	}
	if _, ok := Field(parts, "b"); ok {
		t.Error("Field(b) should not match a file part")
	}
	if _, ok := Field(parts, "c"); ok {
		t.Error("Field(c) should not be found")
	}
}

func TestDecodeOrderPreserved(t *testing.T) {
	names := []string{"one", "two", "three"}
	var specs []string
	for _, n := range names {
		specs = append(specs, "Content-Disposition: form-data; name=\""+n+"\"\r\n\r\n"+strings.ToUpper(n))
	}
	parts, err := Decode("multipart/form-data; boundary=ZZ", buildBody("ZZ", specs...))
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != len(names) {
		t.Fatalf("got %d parts, want %d", len(parts), len(names))
	}
	for i, n := range names {
		if parts[i].Name != n {
			t.Errorf("part %d name = %q, want %q", i, parts[i].Name, n)
		}
	}
}
