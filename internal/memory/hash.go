package memory

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// contentHash computes content_hash over normalized content (spec §4.3
// step 1). Normalization here is whitespace trimming; the teacher's sqlite
// store hashes raw content directly (internal/storage/sqlite/memory_store.go),
// but spec prose calls for hashing "normalized" content, so the orchestrator
// trims before hashing rather than pushing normalization into storage.
func contentHash(content string) string {
	normalized := strings.TrimSpace(content)
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}
