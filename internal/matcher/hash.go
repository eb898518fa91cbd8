package matcher

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/splat-replay/splat-replay/internal/frame"
)

// HashMatcher passes when the SHA-1 of the ROI bytes equals a pre-computed
// digest. This is an exact binary comparison for static screens.
type HashMatcher struct {
	ROI    frame.ROI
	Digest string
}

// NewHashMatcher validates the expected digest up front.
func NewHashMatcher(roi frame.ROI, digest string) (*HashMatcher, error) {
	raw, err := hex.DecodeString(digest)
	if err != nil || len(raw) != sha1.Size {
		return nil, fmt.Errorf("hash matcher needs a %d-byte hex SHA-1 digest, got %q", sha1.Size, digest)
	}
	return &HashMatcher{ROI: roi, Digest: digest}, nil
}

// Match implements Matcher.
func (m *HashMatcher) Match(f *frame.Frame) (bool, error) {
	reg, err := region(f, m.ROI)
	if err != nil {
		return false, err
	}
	sum := sha1.Sum(reg.Data)
	return hex.EncodeToString(sum[:]) == m.Digest, nil
}

// HashFrame computes the digest a HashMatcher compares against, for use by
// configuration tooling.
func HashFrame(f *frame.Frame, roi frame.ROI) (string, error) {
	reg, err := region(f, roi)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(reg.Data)
	return hex.EncodeToString(sum[:]), nil
}
