package features

import (
	"bytes"
	"math"
	"net/url"
	"regexp"
	"strings"
)

var (
	// printableRe matches runs of at least five printable ASCII characters.
	printableRe = regexp.MustCompile(`[\x20-\x7f]{5,}`)
	pathRe      = regexp.MustCompile(`(?i)[a-z]:\\`)
	urlRe       = regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)
	registryRe  = regexp.MustCompile(`HKEY_`)
)

// stringFeatures holds what is learned from the printable strings of a file.
type stringFeatures struct {
	numStrings int
	avgLength  float64
	printables int
	entropy    float64
	paths      []string
	hosts      []string
	registry   []string
	mz         int
}

func extractStrings(data []byte) stringFeatures {
	var f stringFeatures

	matches := printableRe.FindAll(data, -1)
	f.numStrings = len(matches)

	var hist [96]int
	for _, m := range matches {
		f.printables += len(m)
		for _, c := range m {
			hist[c-0x20]++
		}

		s := string(m)
		if pathRe.MatchString(s) {
			f.paths = append(f.paths, s)
		}
		for _, u := range urlRe.FindAllString(s, -1) {
			f.hosts = append(f.hosts, hostname(u))
		}
		if registryRe.MatchString(s) {
			f.registry = append(f.registry, s)
		}
	}

	if f.numStrings > 0 {
		f.avgLength = float64(f.printables) / float64(f.numStrings)
	}
	f.entropy = entropy(hist[:], f.printables)
	f.mz = bytes.Count(data, []byte("MZ"))

	return f
}

// hostname returns the host part of u, or u itself if it has none.
func hostname(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Hostname() == "" {
		return u
	}
	return strings.ToLower(parsed.Hostname())
}

// entropy is the Shannon entropy, in bits, of the distribution in hist.
func entropy(hist []int, total int) float64 {
	if total == 0 {
		return 0
	}

	var h float64
	for _, n := range hist {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
