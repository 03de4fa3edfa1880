package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Username:    "  alice  ",
		Password:    "  pass1234  ",
		DisplayName: " Alice W ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "pass1234", req.Password)
	assert.Equal(t, "Alice W", req.DisplayName)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	name := "acme <script>alert('x')</script> corp"
	req := RegisterRequest{
		Username:    "acme",
		Password:    "password123",
		DisplayName: name,
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.DisplayName, "&lt;script&gt;")
	assert.NotContains(t, req.DisplayName, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	uri := "  https://example.com/cert/42.json  "
	req := DepositRequest{
		ReferenceID: "dep-001",
		Amount:      1000,
		MetadataURI: &uri,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "https://example.com/cert/42.json", *req.MetadataURI)
	assert.Equal(t, "dep-001", req.ReferenceID)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := DepositRequest{
		ReferenceID: "dep-002",
		Amount:      500,
		MetadataURI: nil,
	}
	SanitizeStruct(&req)
	assert.Nil(t, req.MetadataURI)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"dep-001",
		"DEP_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"dep 001",     // space
		"dep<001>",    // angle brackets
		"dep;DROP",    // semicolon
		"",            // empty
		"hello world", // space
		"dep\n001",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
