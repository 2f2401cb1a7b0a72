package filecrypt

import (
	"bytes"

	"github.com/and161185/invisicipher/internal/errs"
)

// pad applies PKCS#7. A block-aligned input gets a whole extra block.
func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, bs int) ([]byte, error) {
	if len(b) == 0 || len(b)%bs != 0 {
		return nil, errs.ErrPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > bs {
		return nil, errs.ErrPadding
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, errs.ErrPadding
		}
	}
	return b[:len(b)-n], nil
}
