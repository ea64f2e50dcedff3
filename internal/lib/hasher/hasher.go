package hasher

import "golang.org/x/crypto/bcrypt"

// Cost is embedded in the produced hash, so verification needs no
// out-of-band work factor.
const Cost = 10

func Hash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), Cost)
}

// Verify reports whether password matches hash. A malformed stored hash
// is indistinguishable from a plain mismatch.
func Verify(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
