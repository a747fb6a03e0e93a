package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func FuzzDigestHexRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("some-digest-material"))
	f.Add([]byte{0xff, 0x00, 0xab})

	f.Fuzz(func(t *testing.T, raw []byte) {
		var digest [32]byte
		copy(digest[:], raw)

		encoded := EncodeDigest(digest)
		require.Len(t, encoded, 64)

		decoded, err := DecodeDigest(encoded)
		require.NoError(t, err)
		require.Equal(t, digest, decoded)

		// Uppercase and 0x-prefixed forms decode to the same digest.
		decoded, err = DecodeDigest("0x" + encoded)
		require.NoError(t, err)
		require.Equal(t, digest, decoded)
	})
}
