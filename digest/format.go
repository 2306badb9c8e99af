// Package digest implements the three manifest digest algorithms named in
// the Zero Install manifest format: sha1new, sha256, and sha256new. Each
// algorithm has a textual prefix, a separator used to build a digest
// identifier (the basename of a store directory), an underlying hash
// function, and an encoding applied to the manifest-level hash.
//
// Per-file content digests inside a manifest are always base16, regardless
// of format; only the manifest digest itself uses the format's encoding.
package digest

import (
	"crypto/sha1"  //nolint:gosec // sha1new is a mandated manifest digest algorithm, not used for security.
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/multiformats/go-multihash"
)

// Format identifies one of the three manifest digest algorithms.
type Format int

const (
	// SHA1New is the oldest algorithm, encoded base16.
	SHA1New Format = iota
	// SHA256 is the intermediate algorithm, encoded base16.
	SHA256
	// SHA256New is the newest algorithm, encoded unpadded base32.
	SHA256New
)

// multihash codes for the two hash functions the three formats build on.
// Using the registry here, rather than calling crypto/sha1 and
// crypto/sha256 directly, keeps the hash selection in one place shared with
// any future algorithm the multihash registry adds support for.
const (
	mhSHA1   = multihash.SHA1
	mhSHA256 = multihash.SHA2_256
)

// Prefix returns the textual algorithm name used in a digest identifier,
// e.g. "sha256new".
func (f Format) Prefix() string {
	switch f {
	case SHA1New:
		return "sha1new"
	case SHA256:
		return "sha256"
	case SHA256New:
		return "sha256new"
	default:
		return "unknown"
	}
}

// Separator returns the character placed between the prefix and the encoded
// hash in a digest identifier.
func (f Format) Separator() string {
	if f == SHA256New {
		return "_"
	}
	return "="
}

// newHasher returns a fresh streaming hasher for this format's hash
// function, obtained through the multihash hasher registry.
func (f Format) newHasher() hash.Hash {
	code := mhSHA256
	if f == SHA1New {
		code = mhSHA1
	}
	h, err := multihash.GetHasher(code)
	if err != nil {
		// The two codes used here are always registered by go-multihash's
		// core package; a failure means the build is broken, not a runtime
		// condition callers can recover from.
		switch code {
		case mhSHA1:
			return sha1.New() //nolint:gosec
		default:
			return sha256.New()
		}
	}
	return h
}

// Encode renders the raw hash sum as this format's manifest-digest
// encoding: base16 for sha1new/sha256, unpadded RFC 4648 base32 for
// sha256new.
//
// sha256new's encoding has no ecosystem library doing exactly this (bare
// bytes in, upper-case unpadded base32 out, no multicodec self-description):
// go-multibase's base32 variant always prepends a one-character multibase
// code, which would have to be stripped back off again, so the standard
// library's encoding/base32 is used directly. See DESIGN.md.
func (f Format) Encode(sum []byte) string {
	if f == SHA256New {
		return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

// ID builds the full digest identifier for a raw hash sum: prefix,
// separator, encoded hash.
func (f Format) ID(sum []byte) string {
	return f.Prefix() + f.Separator() + f.Encode(sum)
}

// ParseID splits a digest identifier (typically a store directory basename)
// back into its Format and encoded-hash portion. It does not decode the
// hash; callers that need the raw bytes decode per the returned Format.
func ParseID(id string) (Format, string, bool) {
	for _, f := range []Format{SHA256New, SHA1New, SHA256} {
		prefix := f.Prefix() + f.Separator()
		if strings.HasPrefix(id, prefix) {
			rest := id[len(prefix):]
			if rest == "" {
				return 0, "", false
			}
			return f, rest, true
		}
	}
	return 0, "", false
}

// HashCode returns the multihash function code backing this format: SHA-1
// for sha1new, SHA-256 for sha256/sha256new.
func (f Format) HashCode() uint64 {
	if f == SHA1New {
		return mhSHA1
	}
	return mhSHA256
}

// ContentDigest computes the per-file content digest used inside a
// manifest entry (NormalFile/ExecutableFile/Symlink): this format's hash
// function, always encoded base16 regardless of the manifest digest's own
// encoding.
func ContentDigest(code uint64, data []byte) (string, error) {
	mh, err := multihash.Sum(data, code, -1)
	if err != nil {
		return "", fmt.Errorf("content digest: %w", err)
	}
	dmh, err := multihash.Decode(mh)
	if err != nil {
		return "", fmt.Errorf("content digest: %w", err)
	}
	return hex.EncodeToString(dmh.Digest), nil
}

// ContentDigest computes the base16 per-file content digest for data using
// this format's hash function.
func (f Format) ContentDigest(data []byte) string {
	d, err := ContentDigest(f.HashCode(), data)
	if err != nil {
		// The two codes used by Format are always registered by
		// go-multihash's core package; this path is unreachable in
		// practice.
		if f == SHA1New {
			h := sha1.Sum(data) //nolint:gosec
			return hex.EncodeToString(h[:])
		}
		h := sha256.Sum256(data)
		return hex.EncodeToString(h[:])
	}
	return d
}
