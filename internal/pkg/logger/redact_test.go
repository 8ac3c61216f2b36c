package logger

import "testing"

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sk_live_abcdef123456", "sk_l***"},
		{"abcd", "***"},
		{"", "***"},
		{"12345", "1234***"},
	}

	for _, tt := range tests {
		if got := RedactSecret(tt.in); got != tt.want {
			t.Errorf("RedactSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactSecretValue(t *testing.T) {
	tests := []struct {
		key  string
		val  string
		want string
	}{
		{"api_key", "sk_live_abcdef", "sk_l***"},
		{"vibe_api_key", "topsecretvalue", "tops***"},
		{"password", "hunter2hunter2", "hunt***"},
		{"client_id", "3f2504e0-4f89", "3f2504e0-4f89"},
		{"source", "surfside", "surfside"},
	}

	for _, tt := range tests {
		if got := redactSecretValue(tt.key, tt.val); got != tt.want {
			t.Errorf("redactSecretValue(%q, %q) = %q, want %q", tt.key, tt.val, got, tt.want)
		}
	}
}
