package tagger

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Default keyword lists for the two tracked parties: common names, leader
// names, and abbreviations in English, Bengali, Hindi, and transliteration.
// These are data, not behaviour — deployments override them from config
// without touching the matching logic.
var (
	DefaultBJPKeywords = []string{
		"bjp", "bharatiya janata", "bhajapa", "modi", "narendra modi",
		"amit shah", "suvendu adhikari", "sukanta majumdar",
		"বিজেপি", "ভাজপা", "মোদী", "মোদি", "শুভেন্দু",
		"भाजपा", "बीजेपी", "मोदी", "अमित शाह",
	}
	DefaultTMCKeywords = []string{
		"tmc", "aitc", "trinamool", "trinamul", "mamata", "mamata banerjee",
		"momota", "abhishek banerjee", "didi",
		"তৃণমূল", "মমতা", "মমতা ব্যানার্জী", "অভিষেক", "দিদি",
		"तृणमूल", "टीएमसी", "ममता", "ममता बनर्जी",
	}
)

// fuzzyJWThreshold is the minimum Jaro-Winkler score a phonetically matched
// token needs before it counts as a keyword hit.
const fuzzyJWThreshold = 0.90

// KeywordSet detects mentions of the two tracked parties in raw transcript
// text. Detection is case-insensitive substring matching, independent per
// party: both flags may be true, both may be false.
//
// An optional fuzzy pass (off by default) additionally matches tokens whose
// Double Metaphone code equals a keyword's code and whose Jaro-Winkler
// similarity clears [fuzzyJWThreshold] — this absorbs the spelling variance
// of transliterated names ("Mamata" vs "Momota") without loosening the exact
// pass. Read-only after construction; safe for concurrent use.
type KeywordSet struct {
	bjp   []string
	tmc   []string
	fuzzy bool
}

// KeywordOption is a functional option for [NewKeywordSet].
type KeywordOption func(*KeywordSet)

// WithFuzzyMatching enables the phonetic fuzzy pass.
func WithFuzzyMatching() KeywordOption {
	return func(k *KeywordSet) { k.fuzzy = true }
}

// NewKeywordSet builds a detector from the two keyword lists. Empty lists
// fall back to the defaults. Keywords are lowercased once at construction.
func NewKeywordSet(bjp, tmc []string, opts ...KeywordOption) *KeywordSet {
	if len(bjp) == 0 {
		bjp = DefaultBJPKeywords
	}
	if len(tmc) == 0 {
		tmc = DefaultTMCKeywords
	}
	k := &KeywordSet{
		bjp: lowerAll(bjp),
		tmc: lowerAll(tmc),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Detect reports whether text mentions each tracked party. The two results
// are independent; a TMC-only text never sets the BJP flag.
func (k *KeywordSet) Detect(text string) (bjp, tmc bool) {
	lower := strings.ToLower(text)
	bjp = matchAny(lower, k.bjp)
	tmc = matchAny(lower, k.tmc)

	if k.fuzzy && (!bjp || !tmc) {
		tokens := strings.FieldsFunc(lower, func(r rune) bool {
			return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!' || r == ';' || r == ':'
		})
		if !bjp {
			bjp = fuzzyMatchAny(tokens, k.bjp)
		}
		if !tmc {
			tmc = fuzzyMatchAny(tokens, k.tmc)
		}
	}
	return bjp, tmc
}

// matchAny reports whether lower contains any of the keywords.
func matchAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// fuzzyMatchAny runs the phonetic pass: a token matches a single-word keyword
// when their Double Metaphone codes overlap and the Jaro-Winkler similarity
// clears the threshold. Multi-word keywords are skipped here — the exact
// substring pass already covers them.
func fuzzyMatchAny(tokens, keywords []string) bool {
	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') {
			continue
		}
		kwP, kwS := matchr.DoubleMetaphone(kw)
		if kwP == "" && kwS == "" {
			// Non-Latin keywords produce no metaphone code.
			continue
		}
		for _, t := range tokens {
			p, s := matchr.DoubleMetaphone(t)
			if !codesOverlap(p, s, kwP, kwS) {
				continue
			}
			if matchr.JaroWinkler(t, kw, false) >= fuzzyJWThreshold {
				return true
			}
		}
	}
	return false
}

// codesOverlap reports whether any non-empty metaphone code is shared.
func codesOverlap(p1, s1, p2, s2 string) bool {
	for _, a := range []string{p1, s1} {
		if a == "" {
			continue
		}
		if a == p2 || (s2 != "" && a == s2) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
