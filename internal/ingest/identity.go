package ingest

import (
	"strings"

	"github.com/google/uuid"
)

// opportunityNamespace scopes name-based IDs to this project. Changing it
// changes every stored ID.
var opportunityNamespace = uuid.MustParse("6f1c2a4e-9b1d-5c7e-8a3f-2d4b6e8f0a13")

// ResolveID derives the stable identifier for a (source, name) pair.
// Inputs are lower-cased and whitespace-collapsed first, so formatting drift
// between scrapes does not change identity.
func ResolveID(source, name string) string {
	key := identityKey(name) + "|" + identityKey(source)
	return uuid.NewSHA1(opportunityNamespace, []byte(key)).String()
}

func identityKey(s string) string {
	return strings.ToLower(normalizeSpace(s))
}
