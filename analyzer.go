package search

import (
	analyzer "github.com/rekki/go-query-analyze"
	norm "github.com/rekki/go-query-normalize"
	tokenize "github.com/rekki/go-query-tokenize"
)

// DefaultNormalizer mirrors the teacher's normalizer chain: accent
// stripping, lowercasing, digit spacing, non-alphanumeric cleanup, trim.
var DefaultNormalizer = []norm.Normalizer{
	norm.NewUnaccent(),
	norm.NewLowerCase(),
	norm.NewSpaceBetweenDigits(),
	norm.NewCleanup(norm.BASIC_NON_ALPHANUMERIC),
	norm.NewTrim(" "),
}

// DefaultTokenizer splits on whitespace; fuzzy and prefix matching are this
// engine's own job (ActiveNodeSet, the trie's descendant-id-range scan),
// not a tokenizer trick, so the default chain stops there. The
// Soundex/CharNgram/LeftEdge chains below are opt-in per attribute.
var DefaultTokenizer = []tokenize.Tokenizer{
	tokenize.NewWhitespace(),
}

// DefaultAnalyzer is used for any searchable attribute that doesn't
// declare its own analyzer.
var DefaultAnalyzer = analyzer.NewAnalyzer(
	DefaultNormalizer,
	DefaultTokenizer,
	DefaultTokenizer,
)

// IDAnalyzer passes primary-key-shaped values through untouched, for
// attributes that should be matched verbatim rather than tokenized.
var IDAnalyzer = analyzer.NewAnalyzer(
	[]norm.Normalizer{norm.NewNoop()},
	[]tokenize.Tokenizer{tokenize.NewNoop()},
	[]tokenize.Tokenizer{tokenize.NewNoop()},
)

// SoundexTokenizer folds tokens to their Soundex code before they reach the
// trie, so a searchable attribute built with SoundexAnalyzer matches on
// phonetic similarity instead of exact spelling.
var SoundexTokenizer = []tokenize.Tokenizer{
	tokenize.NewWhitespace(),
	tokenize.NewSoundex(),
}

// FuzzyTokenizer expands each token into overlapping 2-character shingles
// surrounded by a boundary marker, trading index size for the ability to
// match misspellings via keyword overlap rather than edit distance.
var FuzzyTokenizer = []tokenize.Tokenizer{
	tokenize.NewWhitespace(),
	tokenize.NewCharNgram(2),
	tokenize.NewUnique(),
	tokenize.NewSurround("$"),
}

// AutocompleteIndexTokenizer indexes every left-edge prefix of a token so a
// query for that token's prefix matches without going through ActiveNodeSet
// fuzzy expansion.
var AutocompleteIndexTokenizer = []tokenize.Tokenizer{
	tokenize.NewWhitespace(),
	tokenize.NewLeftEdge(1),
}

// SoundexAnalyzer is a SearchableAttribute analyzer for phonetic matching
// (https://en.wikipedia.org/wiki/Soundex).
var SoundexAnalyzer = analyzer.NewAnalyzer(
	DefaultNormalizer,
	SoundexTokenizer,
	SoundexTokenizer,
)

// FuzzyAnalyzer is a SearchableAttribute analyzer for char-ngram-overlap
// fuzzy matching, an alternative to ActiveNodeSet's edit-distance expansion
// for attributes that want fuzziness baked into the index itself.
var FuzzyAnalyzer = analyzer.NewAnalyzer(
	DefaultNormalizer,
	FuzzyTokenizer,
	FuzzyTokenizer,
)

// AutocompleteAnalyzer indexes left-edge prefixes while still searching with
// the plain whitespace tokenizer, for attributes that want prefix matching
// without relying on the trie's own prefix-range scan.
var AutocompleteAnalyzer = analyzer.NewAnalyzer(
	DefaultNormalizer,
	DefaultTokenizer,
	AutocompleteIndexTokenizer,
)
