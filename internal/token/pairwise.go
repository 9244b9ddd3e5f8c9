package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	id "sigil/pkg/domain"
)

// PairwiseSubject derives the per-client subject identifier for a user. Two
// relying parties receive unrelated subjects for the same account, so they
// cannot correlate users by identifier. The derivation is deterministic for
// a fixed salt: the same client always sees the same subject.
func PairwiseSubject(salt string, clientID id.ClientID, userID id.UserID) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(clientID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(userID.String()))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
