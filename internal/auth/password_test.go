package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	Cost = bcrypt.MinCost
}

func TestCheckPassword(t *testing.T) {
	cases := []struct {
		pw     string
		failed []Rule
	}{
		{"Passw0rd!", nil},
		{"Aa1@aaaa", nil},
		{"Aa1@aaa", []Rule{RuleLength}},
		{"PASSW0RD!", []Rule{RuleLower}},
		{"passw0rd!", []Rule{RuleUpper}},
		{"Password!", []Rule{RuleDigit}},
		{"Passw0rdx", []Rule{RuleSpecial}},
		{"Passw0rd!#", []Rule{RuleAllowed}},
		{"Passw0rd! ", []Rule{RuleAllowed}},
		{"Pässw0rd!", []Rule{RuleAllowed}},
		{"Passw٣rd!", []Rule{RuleDigit, RuleAllowed}},
		{"", []Rule{RuleLength, RuleLower, RuleUpper, RuleDigit, RuleSpecial}},
	}
	for _, tc := range cases {
		t.Run(tc.pw, func(t *testing.T) {
			assert.Equal(t, tc.failed, CheckPassword(tc.pw))
			assert.Equal(t, len(tc.failed) == 0, ValidatePassword(tc.pw))
		})
	}
}

// Every accepted password must satisfy each rule independently.
func TestValidatePasswordAcceptedImpliesRules(t *testing.T) {
	candidates := []string{
		"Passw0rd!", "aB3$efgh", "12345678", "abcdefgH1?", "ZZZZzzzz1&", "Short1!", "NoDigits!!", "nouppercase1!",
	}
	for _, pw := range candidates {
		if !ValidatePassword(pw) {
			continue
		}
		assert.GreaterOrEqual(t, len(pw), MinPasswordLength, pw)
		assert.True(t, strings.ContainsAny(pw, "abcdefghijklmnopqrstuvwxyz"), pw)
		assert.True(t, strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"), pw)
		assert.True(t, strings.ContainsAny(pw, "0123456789"), pw)
		assert.True(t, strings.ContainsAny(pw, Specials), pw)
	}
}

func TestPolicyError(t *testing.T) {
	err := PolicyError([]Rule{RuleDigit, RuleSpecial})
	assert.True(t, errors.Is(err, ErrWeakPassword))
	assert.Contains(t, err.Error(), "a digit, one of @$!%*?&")
}

func TestDigest(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Digest("abc"))
	assert.Equal(t, Digest("Passw0rd!"), Digest("Passw0rd!"))
	assert.NotEqual(t, Digest("Passw0rd!"), Digest("Passw0rd?"))
	assert.Len(t, Digest(""), 64)
}

func TestHashAndVerify(t *testing.T) {
	h1, err := HashPassword("Passw0rd!")
	require.NoError(t, err)
	h2, err := HashPassword("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2, "hashes should be salted")
	assert.NotContains(t, h1, "Passw0rd!")

	ok, upgrade := VerifyPassword(h1, "Passw0rd!")
	assert.True(t, ok)
	assert.False(t, upgrade)

	ok, _ = VerifyPassword(h1, "Passw0rd?")
	assert.False(t, ok)
}

func TestVerifyLegacyDigest(t *testing.T) {
	legacy := Digest("Passw0rd!")

	ok, upgrade := VerifyPassword(legacy, "Passw0rd!")
	assert.True(t, ok)
	assert.True(t, upgrade)

	ok, upgrade = VerifyPassword(legacy, "wrong")
	assert.False(t, ok)
	assert.False(t, upgrade)
}

func TestVerifyGarbageHash(t *testing.T) {
	ok, upgrade := VerifyPassword("not-a-hash", "Passw0rd!")
	assert.False(t, ok)
	assert.False(t, upgrade)
}
