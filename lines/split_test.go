package lines

import "testing"

func TestFindBlankLineEnd(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"lf lf", "event: x\ndata: 1\n\nrest", len("event: x\ndata: 1\n\n")},
		{"cr cr", "data: 1\r\rrest", len("data: 1\r\r")},
		{"crlf crlf", "data: 1\r\n\r\nrest", len("data: 1\r\n\r\n")},
		{"first wins", "a\n\nb\n\n", 3},
		{"single lf", "data: 1\n", -1},
		{"single crlf", "data: 1\r\n", -1},
		{"incomplete crlf pair", "data: 1\r\n\r", -1},
		{"empty", "", -1},
		{"leading blank", "\n\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindBlankLineEnd([]byte(tt.input)); got != tt.want {
				t.Errorf("FindBlankLineEnd(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindBlankLineEnd_Splits(t *testing.T) {
	input := []byte("event: x\ndata: 1\n\nrest")
	idx := FindBlankLineEnd(input)
	if string(input[:idx]) != "event: x\ndata: 1\n\n" {
		t.Errorf("head = %q", input[:idx])
	}
	if string(input[idx:]) != "rest" {
		t.Errorf("tail = %q", input[idx:])
	}
}
