// Package semantic provides the lexical side of work-item matching.
//
// Survey lines are short, templated and typed in a hurry ("behang verwijderen",
// "2x deur afhangen"), while price-book entries are long canonical phrasings
// ("wandbekleding verwijderen incl. lijmresten"). The package reduces both to
// a comparable form and scores them against each other.
//
// # Components
//
// NormalizeText: lower-cases, folds diacritics, replaces punctuation noise with
// spaces and collapses whitespace. Every comparison normalizes both sides with
// it.
//
// NormalizeUnit / UnitScore: maps unit spellings (m², stuks, strekkende meter)
// onto canonical codes and grades how compatible two codes are.
//
// SynonymDictionary: construction-trade concepts with their interchangeable
// surface forms. Expand turns a description into a token set enriched with
// every synonym of every recognized token.
//
// FuzzyMatcher: edit-distance similarity using go-edlib.
//
// LexicalScorer: combines the edit-distance ratio, a synonym-aware keyword
// coverage score and a substring bonus into one text score in [0,1].
//
// # Usage Example
//
//	dict := semantic.DefaultSynonymDictionary()
//	scorer := semantic.NewLexicalScorer(semantic.DefaultScoreLayers, dict, nil)
//
//	score := scorer.Score("behang verwijderen", "Wandbekleding verwijderen incl. lijmresten")
//	unit := semantic.UnitScore("m²", "m2") // 1.0
//
// # Performance Considerations
//
// Prepared token sets are kept in a bounded LRU keyed by normalized text, so
// scoring one work item against a whole catalog only expands each catalog
// description once per process.
package semantic
