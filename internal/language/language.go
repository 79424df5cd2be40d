// Package language maps the mediator's language codes to the BCP-47 tags,
// ISO 639-2 codes and display titles written into muxed stream metadata.
package language

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is one target language of the pipeline.
type Language struct {
	Code    string // mediator language code, e.g. "E", "CHS"
	Tag     language.Tag
	ISO6392 string // bibliographic ISO 639-2 code, as Matroska expects
	Title   string // human readable track title
}

// Mediator language codes are not BCP-47; this table is the bridge.
var mediatorTags = map[string]string{
	"E":   "en",
	"CHS": "zh-Hans",
	"CH":  "zh-Hant",
	"J":   "ja",
	"KO":  "ko",
	"S":   "es",
	"F":   "fr",
	"X":   "de",
	"I":   "it",
	"T":   "pt",
	"U":   "ru",
}

// ISO 639-2 has a terminology (T) and a bibliographic (B) code for a few
// languages. x/text returns T codes; stream metadata uses B codes.
var bibliographic = map[string]string{
	"zho": "chi",
	"fra": "fre",
	"deu": "ger",
	"nld": "dut",
	"ces": "cze",
	"fas": "per",
	"ell": "gre",
	"ron": "rum",
}

// Lookup returns the Language for a mediator language code.
func Lookup(code string) (Language, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	raw, ok := mediatorTags[code]
	if !ok {
		return Language{}, fmt.Errorf("unknown mediator language code %q", code)
	}

	tag := language.MustParse(raw)
	base, _ := tag.Base()

	iso := base.ISO3()
	if b, ok := bibliographic[iso]; ok {
		iso = b
	}

	return Language{
		Code:    code,
		Tag:     tag,
		ISO6392: iso,
		Title:   display.English.Languages().Name(base),
	}, nil
}

// MustLookup is Lookup for codes known at compile time.
func MustLookup(code string) Language {
	l, err := Lookup(code)
	if err != nil {
		panic(err)
	}
	return l
}

// Codes returns the supported mediator language codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(mediatorTags))
	for c := range mediatorTags {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
