package helpers

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"github.com/google/uuid"
)

func randInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// GenerateOrgID generates a server identity UUID.
func GenerateOrgID() string {
	return uuid.NewString()
}

// GenerateOrgKey generates a 64 character shared secret.
func GenerateOrgKey() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	key := make([]byte, 64)
	for i := range key {
		key[i] = alphabet[randInt(len(alphabet))]
	}
	return string(key)
}

// BasicAuthHeader builds the Authorization header value for a server
// credential pair.
func BasicAuthHeader(orgID, orgKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(orgID+":"+orgKey))
}
