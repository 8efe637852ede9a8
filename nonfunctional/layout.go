package nonfunctional

import (
	"bytes"
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// shingleSize is the number of consecutive tags hashed together.
const shingleSize = 3

// layoutFingerprint computes a 64-bit SimHash over shingles of the page's
// start-tag sequence. Text and attributes are ignored, so two pages with the
// same markup skeleton fingerprint identically.
func layoutFingerprint(body []byte) uint64 {
	tags := startTags(body)
	if len(tags) == 0 {
		return 0
	}
	if len(tags) < shingleSize {
		return simhash([]string{strings.Join(tags, "_")})
	}

	shingles := make([]string, 0, len(tags)-shingleSize+1)
	for i := 0; i+shingleSize <= len(tags); i++ {
		shingles = append(shingles, strings.Join(tags[i:i+shingleSize], "_"))
	}
	return simhash(shingles)
}

// layoutDistance is the Hamming distance between two fingerprints.
func layoutDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func startTags(body []byte) []string {
	z := html.NewTokenizer(bytes.NewReader(body))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name))
		}
	}
}

func simhash(tokens []string) uint64 {
	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := range 64 {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i, v := range vector {
		if v > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}
