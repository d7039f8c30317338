// Package importer reads catalog files into catalog sources.
//
// Two formats are accepted:
//   - YAML (.yaml, .yml), decoded strictly: unknown fields are errors.
//   - CUE (.cue), unified with the embedded #Catalog schema and required to
//     be concrete.
//
// Both produce a Document. Ids and names are trimmed and NFC-normalised so
// that visually identical ids written with different Unicode compositions
// refer to the same order or machine.
package importer
