package builder

import "github.com/zeroinstall-go/zeroinstall/zerr"

func errNotSupported(op string) error {
	return zerr.New(zerr.NotSupported, "builder: %s: inner builder does not support in-place mutation", op)
}
