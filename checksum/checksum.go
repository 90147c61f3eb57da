// Package checksum implements Kraken's order book integrity check: a
// CRC-32 (IEEE) hash over the top 10 ask and top 10 bid price/quantity
// strings, computed on the server's exact decimal text.
package checksum

import (
	"hash/crc32"
	"strconv"
	"strings"

	"krakenfeed/models"
)

// Depth is the number of levels per side folded into the checksum.
const Depth = 10

// Compute returns the CRC-32 checksum over the given ask and bid levels,
// following the wire order the server already provides them in (best price
// first). Fewer than Depth levels on either side is valid; only the levels
// present are folded in.
func Compute(asks, bids []models.BookLevel) uint32 {
	var b strings.Builder
	appendSide(&b, asks)
	appendSide(&b, bids)
	return crc32.ChecksumIEEE([]byte(b.String()))
}

// Verify reports whether the locally computed checksum matches the decimal
// string the server sent in a book update's "c" field.
func Verify(local uint32, serverText string) bool {
	want, err := strconv.ParseUint(serverText, 10, 32)
	if err != nil {
		return false
	}
	return uint32(want) == local
}

func appendSide(b *strings.Builder, levels []models.BookLevel) {
	n := len(levels)
	if n > Depth {
		n = Depth
	}
	for i := 0; i < n; i++ {
		b.WriteString(stripNumeric(levels[i].Price))
		b.WriteString(stripNumeric(levels[i].Quantity))
	}
}

// stripNumeric removes the decimal point and any leading zeros from a
// price/quantity string, matching the exact transform Kraken's checksum
// algorithm requires. The text is never reparsed as a float. An empty
// string is represented as "0", per spec.md §4.2.
func stripNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if c != '.' {
			b.WriteRune(c)
		}
	}
	digits := b.String()

	i := 0
	for i < len(digits)-1 && digits[i] == '0' {
		i++
	}
	stripped := digits[i:]
	if stripped == "" {
		return "0"
	}
	return stripped
}
