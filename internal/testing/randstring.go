package testing

import (
	"math/rand"
	"strings"
)

// RandString generates random string with 10 symbols length from lowercase alphabet and digits.
// Result is a valid normalized username.
func RandString() string {
	var out strings.Builder
	charSet := "abcdefghijklmnopqrstuvwxyz0123456789"
	length := 10
	for i := 0; i < length; i++ {
		random := rand.Intn(len(charSet))
		out.WriteByte(charSet[random])
	}
	return out.String()
}

// RandStrings generates n distinct random strings
func RandStrings(n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		s := RandString()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
