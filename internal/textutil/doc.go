// Package textutil provides token-frequency text fingerprints and cosine
// similarity, used to discard mined topics that are near-duplicates of
// recently produced ones.
package textutil
