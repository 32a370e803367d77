// Package auth implements the password policy and password hashing.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password the policy accepts.
const MinPasswordLength = 8

// Specials is the set of non-alphanumeric characters a password may contain.
const Specials = "@$!%*?&"

// ErrWeakPassword is returned when a password does not satisfy the policy.
var ErrWeakPassword = errors.New("password does not meet the policy")

// Rule names a single policy requirement.
type Rule string

const (
	RuleLength  Rule = "at least 8 characters"
	RuleLower   Rule = "a lowercase letter"
	RuleUpper   Rule = "an uppercase letter"
	RuleDigit   Rule = "a digit"
	RuleSpecial Rule = "one of " + Specials
	RuleAllowed Rule = "only letters, digits and " + Specials
)

// CheckPassword returns the rules the password breaks, in a stable order.
// An empty result means the password is acceptable.
func CheckPassword(pw string) []Rule {
	var lower, upper, digit, special, other bool
	n := 0
	for _, r := range pw {
		n++
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(Specials, r):
			special = true
		default:
			other = true
		}
	}

	var failed []Rule
	if n < MinPasswordLength {
		failed = append(failed, RuleLength)
	}
	if !lower {
		failed = append(failed, RuleLower)
	}
	if !upper {
		failed = append(failed, RuleUpper)
	}
	if !digit {
		failed = append(failed, RuleDigit)
	}
	if !special {
		failed = append(failed, RuleSpecial)
	}
	if other {
		failed = append(failed, RuleAllowed)
	}
	return failed
}

// ValidatePassword reports whether pw satisfies every policy rule.
func ValidatePassword(pw string) bool {
	return len(CheckPassword(pw)) == 0
}

// PolicyError wraps ErrWeakPassword with the list of broken rules.
func PolicyError(failed []Rule) error {
	parts := make([]string, len(failed))
	for i, r := range failed {
		parts[i] = string(r)
	}
	return fmt.Errorf("%w: needs %s", ErrWeakPassword, strings.Join(parts, ", "))
}

// Digest returns the lowercase hex SHA-256 of the password.
func Digest(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

// Cost is the bcrypt cost used by HashPassword. Tests lower it.
var Cost = bcrypt.DefaultCost

// HashPassword returns the value to store for pw: bcrypt over its digest.
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(Digest(pw)), Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// VerifyPassword checks pw against a stored hash. Stored values may be bcrypt
// hashes or bare hex digests written before bcrypt was introduced; for the
// latter needsUpgrade is true when the password matches.
func VerifyPassword(stored, pw string) (ok, needsUpgrade bool) {
	digest := Digest(pw)
	if isLegacyDigest(stored) {
		match := subtle.ConstantTimeCompare([]byte(stored), []byte(digest)) == 1
		return match, match
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(digest)); err != nil {
		return false, false
	}
	return true, false
}

func isLegacyDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
