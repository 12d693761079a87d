package textutil

import "testing"

func TestNormalizeSubjectStripsPrefixes(t *testing.T) {
	cases := map[string]string{
		"RE: Quote for PO-123":       "Quote for PO-123",
		"Fwd: FW: RE: Hello there":   "Hello there",
		"[External] RE: Budget":      "Budget",
		"Quote for PO-123":           "Quote for PO-123",
		"  Quote   for    PO-123  ":  "Quote for PO-123",
	}
	for in, want := range cases {
		if got := NormalizeSubject(in); got != want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeSubjectIsIdempotent(t *testing.T) {
	inputs := []string{
		"RE: Quote for PO-123",
		"Fwd: FW: RE: Hello there",
		"",
		"   ",
		"Plain subject",
	}
	for _, s := range inputs {
		once := NormalizeSubject(s)
		twice := NormalizeSubject(once)
		if once != twice {
			t.Errorf("NormalizeSubject not idempotent for %q: once=%q twice=%q", s, once, twice)
		}
	}
}

func TestTruncatedSubjectMatchRequiresFourChars(t *testing.T) {
	if TruncatedSubjectMatch("Quo", "QUOTE FOR PO-123") {
		t.Error("3-char prefix must not truncated-match")
	}
	if !TruncatedSubjectMatch("Quote", "QUOTE FOR PO-123") {
		t.Error("5-char prefix should truncated-match")
	}
}

func TestStandardSubjectMatch(t *testing.T) {
	if !StandardSubjectMatch("quote for po-123", "Quote for PO-123") {
		t.Error("case-insensitive equality should standard-match")
	}
	if !StandardSubjectMatch("Quote", "Quote for PO-123") {
		t.Error("prefix should standard-match")
	}
	if StandardSubjectMatch("Quote for PO-123 extra", "Quote for PO-123") {
		t.Error("longer candidate should not standard-match shorter stored value")
	}
}

func TestBodyFingerprintLengthBound(t *testing.T) {
	long := ""
	for i := 0; i < 2000; i++ {
		long += "x"
	}
	fp := BodyFingerprint(long)
	if len([]rune(fp)) > 512 {
		t.Errorf("fingerprint length = %d, want <= 512", len([]rune(fp)))
	}
}

func TestBodyFingerprintStripsQuotedLines(t *testing.T) {
	body := "Hello\n> quoted reply line\nWorld"
	fp := BodyFingerprint(body)
	if contains(fp, "QUOTED") {
		t.Errorf("fingerprint should not contain quoted lines: %q", fp)
	}
}

func TestDiceSimilaritySymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"hello world", "hello world"},
		{"hello world", "goodbye moon"},
		{"", ""},
		{"abc", ""},
	}
	for _, p := range pairs {
		ab := DiceSimilarity(p[0], p[1])
		ba := DiceSimilarity(p[1], p[0])
		if ab != ba {
			t.Errorf("DiceSimilarity not symmetric for %v: %f vs %f", p, ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("DiceSimilarity(%v) = %f, out of [0,1]", p, ab)
		}
	}
}

func TestMatchesBaseline(t *testing.T) {
	if !MatchesBaseline("HELLO WORLD", "HELLO") {
		t.Error("prefix should match baseline")
	}
	if MatchesBaseline("HELLO", "") {
		t.Error("empty string should never match baseline")
	}
}

func TestMojibakeRepairIsNoOpWhenValidatorRejectsEverything(t *testing.T) {
	reject := func(string) bool { return false }
	input := "some ordinary ASCII subject"
	if got := RepairMojibake(input, reject); got != input {
		t.Errorf("expected no-op, got %q", got)
	}
}

func TestNormalizeParticipantStripsTransportPrefix(t *testing.T) {
	cases := map[string]string{
		"  SMTP:alice@acme.com  ": "ALICE@ACME.COM",
		"<bob@corp.com>":          "BOB@CORP.COM",
		"mailto:carol@x.com":      "CAROL@X.COM",
		"   ":                    "",
	}
	for in, want := range cases {
		if got := NormalizeParticipant(in); got != want {
			t.Errorf("NormalizeParticipant(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractMessageIDsFromBracketedList(t *testing.T) {
	ids := ExtractMessageIDs("<a@x.com> <b@y.com>")
	if len(ids) != 2 || ids[0] != "a@x.com" || ids[1] != "b@y.com" {
		t.Errorf("got %v", ids)
	}
}

func TestExtractMessageIDsFromPlainList(t *testing.T) {
	ids := ExtractMessageIDs("a@x.com, b@y.com")
	if len(ids) != 2 {
		t.Errorf("got %v", ids)
	}
}

func TestThreadIndexPrefixEmptyInput(t *testing.T) {
	if got := ThreadIndexPrefix(""); got != "" {
		t.Errorf("expected empty prefix, got %q", got)
	}
}

func TestExtractHistoricalSubjects(t *testing.T) {
	body := "Some reply text\n\nSubject: Quote for PO-123\nMore text"
	subs := ExtractHistoricalSubjects(body)
	if len(subs) != 1 || subs[0] != "Quote for PO-123" {
		t.Errorf("got %v", subs)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
