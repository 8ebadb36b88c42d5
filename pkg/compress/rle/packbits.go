package rle

import (
	"errors"
	"fmt"
)

// maxRun is the longest literal or replicate run one header byte describes
const maxRun = 128

// pack encodes one byte segment as PackBits runs. Two or more equal bytes
// become a replicate run; a literal run ends where three equal bytes start.
func pack(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/maxRun+1)
	for i := 0; i < len(data); {
		n := 1
		for i+n < len(data) && n < maxRun && data[i+n] == data[i] {
			n++
		}
		if n > 1 {
			out = append(out, byte(1-n), data[i])
			i += n
			continue
		}
		n = 1
		for i+n < len(data) && n < maxRun && !repeats3(data[i+n:]) {
			n++
		}
		out = append(out, byte(n-1))
		out = append(out, data[i:i+n]...)
		i += n
	}
	return out
}

func repeats3(b []byte) bool {
	return len(b) >= 3 && b[0] == b[1] && b[1] == b[2]
}

// unpack decodes PackBits runs, stopping once want bytes are produced
// when want is positive. A -128 header is a no-op.
func unpack(data []byte, want int) ([]byte, error) {
	out := make([]byte, 0, max(want, 0))
	for i := 0; i < len(data); {
		if want > 0 && len(out) >= want {
			break
		}
		h := int8(data[i])
		i++
		switch {
		case h == -128:
		case h >= 0:
			n := int(h) + 1
			if i+n > len(data) {
				return nil, fmt.Errorf("rle: segment truncated in literal run of %d at %d", n, i)
			}
			out = append(out, data[i:i+n]...)
			i += n
		default:
			if i >= len(data) {
				return nil, errors.New("rle: segment truncated in replicate run")
			}
			for n := int(-h) + 1; n > 0; n-- {
				out = append(out, data[i])
			}
			i++
		}
	}
	return out, nil
}
