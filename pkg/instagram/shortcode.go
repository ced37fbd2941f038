package instagram

import (
	"fmt"
	"math/big"
	"strings"
)

const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// ShortcodeToPK converts a post shortcode into the numeric media id used by
// the mobile API. Shortcodes are base64 numbers over a URL-safe alphabet.
func ShortcodeToPK(shortcode string) (string, error) {
	if shortcode == "" {
		return "", fmt.Errorf("empty shortcode")
	}
	// private posts append a 28 character suffix
	if len(shortcode) > 28 {
		shortcode = shortcode[:len(shortcode)-28]
	}

	pk := new(big.Int)
	base := big.NewInt(64)
	for _, r := range shortcode {
		idx := strings.IndexRune(shortcodeAlphabet, r)
		if idx < 0 {
			return "", fmt.Errorf("invalid shortcode character %q", r)
		}
		pk.Mul(pk, base)
		pk.Add(pk, big.NewInt(int64(idx)))
	}
	return pk.String(), nil
}

// PKToShortcode is the inverse of ShortcodeToPK.
func PKToShortcode(pk string) (string, error) {
	n, ok := new(big.Int).SetString(pk, 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("invalid media id %q", pk)
	}
	if n.Sign() == 0 {
		return string(shortcodeAlphabet[0]), nil
	}

	var out []byte
	base := big.NewInt(64)
	mod := new(big.Int)
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, shortcodeAlphabet[mod.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}
