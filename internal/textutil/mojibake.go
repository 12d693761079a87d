package textutil

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// legacyCodePages lists the candidate encodings tried in order during
// mojibake repair: GBK, GB18030, Shift-JIS, EUC-KR, Big5. The teacher only
// ever needs the Western code pages (charmap.ISO8859_1/15, Windows1252,
// reached through golang.org/x/text/encoding/htmlindex) for decoding
// mail bodies; repairing a CJK mojibake needs the sibling packages in the
// same golang.org/x/text module the teacher already depends on.
var legacyCodePages = []encoding.Encoding{
	simplifiedchinese.GBK,
	simplifiedchinese.GB18030,
	japanese.ShiftJIS,
	korean.EUCKR,
	traditionalchinese.Big5,
}

// Validator decides whether a mojibake-repair candidate is plausible text.
type Validator func(candidate string) bool

// RepairMojibake reverses an encoding misinterpretation: for each legacy
// code page, it encodes the input under that code page and decodes the
// resulting bytes as UTF-8, testing each candidate against validate. The
// first candidate validate accepts wins; if none do, the input is
// returned unchanged.
func RepairMojibake(input string, validate Validator) string {
	if input == "" || validate == nil {
		return input
	}

	for _, enc := range legacyCodePages {
		encoded, err := enc.NewEncoder().String(input)
		if err != nil {
			continue
		}
		// encoded is now a byte sequence under the legacy code page;
		// re-interpret those bytes as if they were always UTF-8.
		if validate(encoded) {
			return encoded
		}
	}
	return input
}
