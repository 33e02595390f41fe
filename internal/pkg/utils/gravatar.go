package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// GetGravatarURL returns the avatar of a member or seller. Addresses without
// a Gravatar fall back to the generated identicon.
func GetGravatarURL(email string, size int) string {
	if size <= 0 {
		size = 96
	}
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=%d&d=identicon", hex.EncodeToString(sum[:]), size)
}
