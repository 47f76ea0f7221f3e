package ipmi

import (
	"strings"
	"testing"
)

func TestCleanStderr(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "benign only",
			input: "Unable to Get Channel Cipher Suites\n",
			want:  "",
		},
		{
			name:  "benign pair only",
			input: "Unable to Get Channel Cipher Suites\nGet Channel Cipher Suites command failed\n",
			want:  "",
		},
		{
			name:  "benign mixed with real error",
			input: "Unable to Get Channel Cipher Suites\nGet Channel Cipher Suites command failed\n\nreal error here\n",
			want:  "real error here",
		},
		{
			name:  "case insensitive",
			input: "UNABLE TO GET CHANNEL CIPHER SUITES\n",
			want:  "",
		},
		{
			name:  "real error only",
			input: "Error: Unable to establish IPMI v2 / RMCP+ session\n",
			want:  "Error: Unable to establish IPMI v2 / RMCP+ session",
		},
		{
			name:  "failure notice with trailing detail",
			input: "Get Channel Cipher Suites command failed: Invalid data field in request\nreal error here\n",
			want:  "real error here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanStderr(tt.input)
			if got != tt.want {
				t.Errorf("CleanStderr(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.Contains(got, "Cipher Suites") {
				t.Errorf("benign content survived filtering: %q", got)
			}
		})
	}
}

func TestHasRealErrors(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"Unable to Get Channel Cipher Suites\n", false},
		{"Unable to Get Channel Cipher Suites\nGet Channel Cipher Suites command failed\n\nreal error here\n", true},
		{"Error: Authentication type NONE not supported\n", true},
		{"   \n  \n", false},
	}

	for _, tt := range tests {
		if got := HasRealErrors(tt.input); got != tt.want {
			t.Errorf("HasRealErrors(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRedactArgs(t *testing.T) {
	argv := []string{"ipmitool", "-I", "lanplus", "-H", "10.9.1.10", "-U", "root", "-P", "calvin", "power", "status"}
	got := redactArgs(argv)

	if strings.Contains(got, "calvin") {
		t.Errorf("password leaked into log target: %q", got)
	}
	if !strings.Contains(got, "-P ******") {
		t.Errorf("expected redaction marker, got %q", got)
	}
	if argv[8] != "calvin" {
		t.Error("redactArgs mutated the original argv")
	}
}
