package sanitize

import "testing"

func TestStripHTMLRemovesEncodedTags(t *testing.T) {
	got := StripHTML("hi &lt;script&gt;alert(1)&lt;/script&gt; there")
	if got != "hi alert(1) there" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestTextKeepsLineBreaks(t *testing.T) {
	got := Text("  <b>Called</b> twice\nno answer  ")
	if got != "Called twice\nno answer" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestLineCollapsesWhitespace(t *testing.T) {
	got := Line(" Jane \n\t Doe ")
	if got != "Jane Doe" {
		t.Fatalf("unexpected result %q", got)
	}
}
