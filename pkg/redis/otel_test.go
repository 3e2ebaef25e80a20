package redis

import "testing"

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "pw:wizard:1234567890", want: "pw:wizard:***"},
		{key: "pw:lock:wizard:42", want: "pw:lock:wizard:***"},
		{key: "plain", want: "plain"},
		{key: "pw:ratelimit", want: "pw:ratelimit"},
	}

	for _, tt := range tests {
		if got := sanitizeKey(tt.key); got != tt.want {
			t.Errorf("sanitizeKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
