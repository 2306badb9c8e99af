package digest

import (
	"encoding/hex"
	"hash"
	"io"
)

// Digester streams content through a format's hash function and, once
// exhausted, reports both the base16 content digest and the byte count
// seen. Generalized to the three
// manifest formats instead of a single fixed algorithm.
type Digester interface {
	io.Writer
	// Digest returns the base16 content digest of everything written so
	// far.
	Digest() string
	// Sum returns the raw hash sum of everything written so far, for
	// callers that need to apply a manifest Format's own encoding (e.g.
	// base32 for sha256new) rather than the fixed base16 of Digest.
	Sum() []byte
	// Size returns the number of bytes written so far.
	Size() int64
}

type digester struct {
	hash hash.Hash
	size int64
}

// NewDigester returns a Digester that hashes with the given Format's hash
// function.
func NewDigester(f Format) Digester {
	return &digester{hash: f.newHasher()}
}

func (d *digester) Write(p []byte) (int, error) {
	n, err := d.hash.Write(p)
	d.size += int64(n)
	return n, err
}

func (d *digester) Digest() string {
	return hex.EncodeToString(d.hash.Sum(nil))
}

func (d *digester) Sum() []byte {
	return d.hash.Sum(nil)
}

func (d *digester) Size() int64 {
	return d.size
}

// SumReader hashes all of r with the given Format's hash function and
// returns the base16 digest and the total size read.
func SumReader(f Format, r io.Reader) (digest string, size int64, err error) {
	d := NewDigester(f)
	n, err := io.Copy(d, r)
	if err != nil {
		return "", 0, err
	}
	return d.Digest(), n, nil
}
