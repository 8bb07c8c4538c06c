package crawler

import (
	"strings"

	"github.com/RadhiFadlillah/whatlanggo"
	"golang.org/x/text/language"
)

// minTextForDetection is the minimum visible-text length worth running
// statistical detection on. Below it, trigram confidence is noise.
const minTextForDetection = 80

// LanguagePredicate decides whether a parsed page is in an acceptable
// language. The default, EnglishOnly, keeps only English pages; a
// custom predicate swaps the target language without touching the
// pipeline.
type LanguagePredicate func(page *ParseResult) bool

// EnglishOnly reports whether a page is in English.
//
// Classification runs in two stages. Pages that declare a language in
// markup (html lang attribute or a content-language meta tag) are
// trusted: declared metadata is cheap and rarely lies about being
// English. Pages with no declaration fall through to statistical
// detection of the visible text. Pages with neither a declaration nor
// enough text to detect are rejected.
func EnglishOnly(page *ParseResult) bool {
	if declared, ok := declaredLanguage(page); ok {
		return declared == englishBase
	}
	return detectedEnglish(page.Text)
}

// declaredLanguage extracts the base language a page declares in its
// markup. The second return is false when nothing parseable was
// declared. The html lang attribute wins over the meta tag.
func declaredLanguage(page *ParseResult) (language.Base, bool) {
	for _, declared := range []string{page.Lang, page.ContentLanguage} {
		declared = strings.TrimSpace(declared)
		if declared == "" {
			continue
		}
		// content-language may carry a list ("en-US, fr"); the first
		// entry is the primary language.
		if i := strings.IndexByte(declared, ','); i >= 0 {
			declared = strings.TrimSpace(declared[:i])
		}
		tag, err := language.Parse(declared)
		if err != nil {
			continue
		}
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		return base, true
	}
	return language.Base{}, false
}

// language.English's base, resolved once.
var englishBase = func() language.Base {
	base, _ := language.English.Base()
	return base
}()

// detectedEnglish runs trigram-based detection on visible text and
// reports whether it is reliably English.
func detectedEnglish(text string) bool {
	if len(text) < minTextForDetection {
		return false
	}
	info := whatlanggo.Detect(text)
	return info.Lang == whatlanggo.Eng && info.IsReliable()
}
