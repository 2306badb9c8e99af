package digest

import (
	"fmt"
	"strings"
)

// ID is a manifest digest identifier in the form "<prefix><separator><encoded
// hash>", e.g. "sha256new_RPUJPVVHEQAAAA...". It is the basename under which
// an implementation is stored.
type ID string

// NewID builds an ID from a Format and the raw (unencoded) manifest hash
// sum.
func NewID(f Format, sum []byte) ID {
	return ID(f.ID(sum))
}

// Format returns the algorithm this ID was minted with.
func (d ID) Format() (Format, error) {
	f, _, ok := ParseID(string(d))
	if !ok {
		return 0, fmt.Errorf("digest: invalid id %q", d)
	}
	return f, nil
}

// Encoded returns the encoded-hash portion of the ID, without prefix or
// separator.
func (d ID) Encoded() (string, error) {
	_, enc, ok := ParseID(string(d))
	if !ok {
		return "", fmt.Errorf("digest: invalid id %q", d)
	}
	return enc, nil
}

// Valid reports whether d parses as a recognized digest identifier.
func (d ID) Valid() bool {
	_, _, ok := ParseID(string(d))
	return ok
}

func (d ID) String() string { return string(d) }

// LooksLikeID reports whether s has the shape of a digest identifier
// (recognized prefix + separator) without fully validating the encoded
// portion. Used by feed normalization to decide whether an
// implementation's bare id attribute should be parsed as a manifest digest.
func LooksLikeID(s string) bool {
	for _, f := range []Format{SHA256New, SHA1New, SHA256} {
		if strings.HasPrefix(s, f.Prefix()+f.Separator()) {
			return true
		}
	}
	return false
}
