package fs

import "testing"

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.txt", "report.txt"},
		{"My cool notes.md", "My_cool_notes.md"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\me\file.txt`, "C_Users_me_file.txt"},
		{"résumé.txt", "resume.txt"},
		{"  .hidden  ", "hidden"},
		{"漢字.txt", "txt"},
		{"???", ""},
		{"a<b>|c.md", "abc.md"},
	}
	for _, tt := range tests {
		if got := SecureFilename(tt.in); got != tt.want {
			t.Errorf("SecureFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
