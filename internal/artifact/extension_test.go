package artifact

import "testing"

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		contentType string
		status      int
		want        string
	}{
		{"application/json", 200, ".json"},
		{"application/json; charset=utf-8", 200, ".json"},
		{"text/plain", 200, ".txt"},
		{"text/csv", 200, ".csv"},
		{"application/xml", 200, ".xml"},
		{"text/xml", 200, ".xml"},
		{"application/pdf", 200, ".pdf"},
		{"image/png", 200, ".png"},
		{"image/jpeg", 200, ".jpg"},
		{"application/octet-stream", 200, ".txt"},
		{"", 200, ".txt"},
		{"application/json", -1, ".txt"},
	}
	for _, c := range cases {
		if got := ExtensionFor(c.contentType, c.status); got != c.want {
			t.Errorf("ExtensionFor(%q, %d) = %q, want %q", c.contentType, c.status, got, c.want)
		}
	}
}
