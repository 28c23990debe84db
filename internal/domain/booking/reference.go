package booking

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	referenceTimeLen   = 8
	referenceSuffixLen = 3
	base36Chars        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// ErrDuplicateReference is returned by stores when a reference is already taken
// within its domain.
var ErrDuplicateReference = errors.New("booking reference already exists")

// GenerateReference builds a reference of the form PREFIX-TTTTTTTT-RRR: the
// last eight base-36 digits of the current Unix millisecond clock followed by
// three random base-36 characters. Uniqueness is enforced by the store.
func GenerateReference(prefix string) (string, error) {
	return generateReferenceAt(prefix, time.Now())
}

func generateReferenceAt(prefix string, now time.Time) (string, error) {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	if len(ts) > referenceTimeLen {
		ts = ts[len(ts)-referenceTimeLen:]
	} else if len(ts) < referenceTimeLen {
		ts = strings.Repeat("0", referenceTimeLen-len(ts)) + ts
	}

	suffix := make([]byte, referenceSuffixLen)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36Chars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate reference: %w", err)
		}
		suffix[i] = base36Chars[n.Int64()]
	}
	return prefix + "-" + ts + "-" + string(suffix), nil
}

// HasPrefix reports whether ref was generated for prefix.
func HasPrefix(ref, prefix string) bool {
	return strings.HasPrefix(ref, prefix+"-")
}
