package webhook

import "testing"

func TestVerify(t *testing.T) {
	body := []byte(`{"id":820982911946154508,"line_items":[]}`)
	sig := Sign(body, "hush")

	if !Verify(body, sig, "hush") {
		t.Fatal("valid signature rejected")
	}
	tampered := append([]byte(nil), body...)
	tampered[7] = '9'
	if Verify(tampered, sig, "hush") {
		t.Fatal("tampered body accepted")
	}
	cases := map[string]string{
		"wrong secret": Sign(body, "other"),
		"short header": sig[:10],
		"long header":  sig + "AAAA",
		"garbage":      "not base64 at all",
		"empty":        "",
	}
	for name, header := range cases {
		if Verify(body, header, "hush") {
			t.Errorf("%s: accepted", name)
		}
	}
	if Verify(body, sig, "") {
		t.Error("empty secret accepted")
	}
}
