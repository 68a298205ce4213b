package bilibili

import "strings"

const (
	maskCode = 2251799813685247
	xorCode  = 23442827791579
	base     = 58
)

var bvidAlphabet = [...]byte{
	'F', 'c', 'w', 'A', 'P', 'N', 'K', 'T', 'M', 'u', 'g', '3', 'G', 'V', '5', 'L', 'j', '7', 'E',
	'J', 'n', 'H', 'p', 'W', 's', 'x', '4', 't', 'b', '8', 'h', 'a', 'Y', 'e', 'v', 'i', 'q', 'B',
	'z', '6', 'r', 'k', 'C', 'y', '1', '2', 'm', 'U', 'S', 'D', 'Q', 'X', '9', 'R', 'd', 'o', 'Z',
	'f',
}

var bvidIndex = func() map[byte]int64 {
	m := make(map[byte]int64, len(bvidAlphabet))
	for i, c := range bvidAlphabet {
		m[c] = int64(i)
	}
	return m
}()

// BvidToAid converts a platform string video id (prefix "BV") to its
// numeric aid. It swaps two fixed character positions (a historical
// scrambling step), base-58 decodes the remainder against a fixed alphabet,
// masks to 51 bits, then XORs with a fixed constant.
func BvidToAid(bvid string) uint64 {
	b := []byte(bvid)
	b[3], b[9] = b[9], b[3]
	b[4], b[7] = b[7], b[4]

	var tmp uint64
	for i := 3; i < len(b); i++ {
		tmp = tmp*base + uint64(bvidIndex[b[i]])
	}
	return (tmp & maskCode) ^ xorCode
}

// IsBvid reports whether s looks like a bvid (case-sensitive "BV" prefix,
// the fixed length bilibili always emits).
func IsBvid(s string) bool {
	return strings.HasPrefix(s, "BV") && len(s) == 12
}
