// Package textutil canonicalizes free-text titles, performers, and filenames
// so they can be compared, and scores how similar two canonical keys are.
//
// Canonicalization case-folds, strips diacritics, collapses punctuation and
// whitespace, and removes track/disc boilerplate. Similarity combines a
// normalized edit distance with token cosine overlap so reordered words still
// score well. Filename sanitizing for generated track files lives here too.
package textutil
