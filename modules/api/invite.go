package api

import (
	"crypto/rand"
	"math/big"
)

const (
	inviteCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength = 8
)

// newInviteCode generates a random invite code. The alphabet omits the
// lookalike characters 0, O, 1 and I so codes survive being read aloud.
func newInviteCode() (string, error) {
	code := make([]byte, inviteCodeLength)
	max := big.NewInt(int64(len(inviteCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteCodeChars[n.Int64()]
	}
	return string(code), nil
}
