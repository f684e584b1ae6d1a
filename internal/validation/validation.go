// Package validation provides input validation helpers and middleware
// for the coverledger API.
package validation

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxDescriptionLength bounds claim description text.
const MaxDescriptionLength = 2000

var (
	// ethAddressRegex validates account identities
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// digestRegex validates 32-byte evidence digests
	digestRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidAddress checks if a string is a valid account address
func IsValidAddress(addr string) bool {
	return ethAddressRegex.MatchString(addr)
}

// IsValidDigest checks if a string is a 32-byte hex digest with 0x prefix
func IsValidDigest(s string) bool {
	return digestRegex.MatchString(s)
}

// SanitizeString trims, bounds, and strips null bytes from free text.
// The length bound cuts at a rune boundary so truncation never leaves a
// split multi-byte character behind.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// AddressParamMiddleware validates the :address URL parameter on routes that use it.
// Apply to route groups that include :address params to reject malformed addresses early.
func AddressParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("address")
		if addr != "" && !IsValidAddress(addr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": "address must be a valid account address (0x + 40 hex chars)",
			})
			return
		}
		c.Next()
	}
}

// ValidCategory reports whether a category tag is well-formed: short,
// lowercase alphanumeric. Unknown categories are still priced with the
// catch-all multiplier, so this only rejects junk input.
func ValidCategory(category string) bool {
	if category == "" || len(category) > 32 {
		return false
	}
	for _, c := range category {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}
