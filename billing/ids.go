package billing

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newID returns PREFIX_<base36 millis>_<5 random base36 chars>, upper-cased.
func newID(prefix string, now time.Time) string {
	var suffix [5]byte
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	id := prefix + "_" + strconv.FormatInt(now.UnixMilli(), 36) + "_" + string(suffix[:])
	return strings.ToUpper(id)
}
