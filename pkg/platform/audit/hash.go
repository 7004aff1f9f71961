package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashRecordID returns the hex SHA-256 digest of a record identifier. Audit
// rows keep the digest instead of the raw id, which may embed account
// numbers or claim references.
func HashRecordID(recordID string) string {
	if recordID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(recordID))
	return hex.EncodeToString(sum[:])
}
