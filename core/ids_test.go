package core

import (
	"encoding/base64"
	"regexp"
	"strings"
	"testing"
)

// base32 alphabet used by ULIDs: 0-9, A-Z excluding I, L, O, U
var ulidPattern = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewID(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{
			name:   "operator prefix",
			prefix: "op",
		},
		{
			name:   "worklog prefix",
			prefix: "wl",
		},
		{
			name:   "session prefix",
			prefix: "sess",
		},
		{
			name:   "uppercase prefix gets lowercased",
			prefix: "TKT",
		},
		{
			name:   "prefix with spaces gets trimmed",
			prefix: "  op  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewID(tt.prefix)

			expectedPrefix := strings.ToLower(strings.TrimSpace(tt.prefix)) + "_"
			if !strings.HasPrefix(got, expectedPrefix) {
				t.Errorf("NewID() = %v, want prefix %v", got, expectedPrefix)
			}

			ulidPart := strings.TrimPrefix(got, expectedPrefix)
			if !ulidPattern.MatchString(ulidPart) {
				t.Errorf("NewID() ULID part %v is not a 26-character base32 ULID", ulidPart)
			}
		})
	}
}

func TestNewIDPanicsOnEmptyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{
			name:   "empty prefix",
			prefix: "",
		},
		{
			name:   "whitespace-only prefix",
			prefix: "   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("NewID(%q) expected panic but got none", tt.prefix)
				}
			}()

			NewID(tt.prefix)
		})
	}
}

func TestNewIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	numTests := 1000

	for i := 0; i < numTests; i++ {
		id := NewID("wl")

		if ids[id] {
			t.Errorf("NewID() generated duplicate ID: %v", id)
		}
		ids[id] = true
	}
}

func TestIsValidULID(t *testing.T) {
	// Derive the invalid variants from a real generated ID so the ULID part
	// is structurally plausible in every case
	valid := NewID("op")
	ulidPart := strings.TrimPrefix(valid, "op_")

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{
			name: "generated operator ID",
			id:   valid,
			want: true,
		},
		{
			name: "generated multi-char prefix ID",
			id:   NewID("sess"),
			want: true,
		},
		{
			name: "empty string",
			id:   "",
			want: false,
		},
		{
			name: "missing separator",
			id:   "op" + ulidPart,
			want: false,
		},
		{
			name: "second underscore",
			id:   "op_01AB_" + ulidPart[:20],
			want: false,
		},
		{
			name: "empty prefix",
			id:   "_" + ulidPart,
			want: false,
		},
		{
			name: "uppercase prefix",
			id:   "OP_" + ulidPart,
			want: false,
		},
		{
			name: "prefix with special chars",
			id:   "help-desk_" + ulidPart,
			want: false,
		},
		{
			name: "ULID part truncated",
			id:   "op_" + ulidPart[:25],
			want: false,
		},
		{
			name: "ULID part overlong",
			id:   "op_" + ulidPart + "0",
			want: false,
		},
		{
			name: "ULID part lowercased",
			id:   "op_" + strings.ToLower(ulidPart),
			want: false,
		},
		{
			name: "excluded base32 letter",
			id:   "op_" + ulidPart[:25] + "L",
			want: false,
		},
		{
			name: "bare prefix",
			id:   "op_",
			want: false,
		},
		{
			name: "API token is not an entity ID",
			id:   "hd_c2VjcmV0LXNlY3JldC1zZWNyZXQtc2VjcmV0",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidULID(tt.id)
			if got != tt.want {
				t.Errorf("IsValidULID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIsValidULIDWithGeneratedIDs(t *testing.T) {
	prefixes := []string{"op", "wl", "sess", "tkt", "client"}

	for _, prefix := range prefixes {
		t.Run("prefix_"+prefix, func(t *testing.T) {
			id := NewID(prefix)
			if !IsValidULID(id) {
				t.Errorf("Generated ID %q should be valid but IsValidULID returned false", id)
			}
		})
	}
}

func TestNewSecretKey(t *testing.T) {
	key, err := NewSecretKey("hd")
	if err != nil {
		t.Fatalf("NewSecretKey() error = %v", err)
	}

	if !strings.HasPrefix(key, "hd_") {
		t.Errorf("NewSecretKey() = %v, want hd_ prefix", key)
	}

	raw, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(key, "hd_"))
	if err != nil {
		t.Errorf("NewSecretKey() payload is not URL-safe base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("NewSecretKey() entropy = %d bytes, want 32", len(raw))
	}

	other, err := NewSecretKey("hd")
	if err != nil {
		t.Fatalf("NewSecretKey() error = %v", err)
	}
	if key == other {
		t.Errorf("NewSecretKey() generated the same key twice")
	}
}
