// Package normalize turns loosely typed image records into canonical
// manifests.
//
// Coercion rules:
//
//   - activated, disabled, public, generate_passwords: "true"/"false"
//     become booleans; other values are left as they are.
//   - image_size: numeric strings and numbers become int64; anything
//     non-integral is an ErrNormalization.
//   - tags: a "key=value" string or list of them becomes a mapping; each
//     entry must contain exactly one "=", and later keys win.
//   - files: each descriptor is reduced to sha1, size, compression and
//     dataset_guid.
//
// Normalize is a pure function of its input.
package normalize
