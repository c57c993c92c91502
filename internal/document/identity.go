package document

import (
	"fmt"

	"github.com/google/uuid"
)

// DeriveID returns the stable object identifier of an issue: a name-based UUID (v5, DNS
// namespace) over "{owner}_{name}_{number}". Re-syncing an issue yields the same id, so the
// store replaces the object instead of adding a duplicate.
func DeriveID(owner, name string, number int) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, fmt.Appendf(nil, "%s_%s_%d", owner, name, number)).String()
}

// DeriveKeyID returns a stable identifier for a keyed record such as a watermark.
func DeriveKeyID(kind, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(kind+"_"+key)).String()
}
