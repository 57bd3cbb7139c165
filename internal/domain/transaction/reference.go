package transaction

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

var referencePattern = regexp.MustCompile(`^ref-\d+-\d+$`)

// NewReference returns a reference of the form ref-<unix millis>-<random>.
// Uniqueness is enforced by the store, not here.
func NewReference() string {
	return fmt.Sprintf("ref-%d-%d", time.Now().UnixMilli(), rand.IntN(1000000))
}

// IsGeneratedReference reports whether s has the shape produced by NewReference.
func IsGeneratedReference(s string) bool {
	return referencePattern.MatchString(s)
}
