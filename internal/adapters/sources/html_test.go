package sources

import (
	"reflect"
	"testing"
)

func TestCleanHTML(t *testing.T) {
	raw := `<p>Nike   Dunk <b>Low</b></p><script>alert(1)</script><style>p{}</style>`
	if got := CleanHTML(raw); got != "Nike Dunk Low" {
		t.Fatalf("expected clean text, got %q", got)
	}
}

func TestExtractImages(t *testing.T) {
	raw := `<div>
		<img src="https://cdn.example.com/a.jpg">
		<img src="https://cdn.example.com/a.jpg">
		<img src="https://cdn.example.com/b.webp">
		<img src="https://cdn.example.com/doc.pdf">
		<img src="https://cdn.example.com/c.png">
	</div>`
	got := ExtractImages(raw, 2)
	want := []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.webp"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidImageURL(t *testing.T) {
	valid := []string{
		"https://cdn.example.com/pic.JPG",
		"https://cdn.example.com/pic.webp?w=800",
		"https://cdn.example.com/images/12345",
	}
	for _, u := range valid {
		if !ValidImageURL(u) {
			t.Fatalf("expected %q to be valid", u)
		}
	}
	invalid := []string{
		"",
		"/relative/pic.jpg",
		"https://cdn.example.com/doc.pdf",
		"not a url",
	}
	for _, u := range invalid {
		if ValidImageURL(u) {
			t.Fatalf("expected %q to be invalid", u)
		}
	}
}
