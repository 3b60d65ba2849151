package lines

// FindBlankLineEnd returns the index just past the first blank-line boundary
// in buf ("\n\n", "\r\r" or "\r\n\r\n"), or -1 if buf holds none yet.
func FindBlankLineEnd(buf []byte) int {
	for i := 0; i < len(buf)-1; i++ {
		switch {
		case buf[i] == lf && buf[i+1] == lf:
			return i + 2
		case buf[i] == cr && buf[i+1] == cr:
			return i + 2
		case buf[i] == cr && buf[i+1] == lf &&
			i+3 < len(buf) && buf[i+2] == cr && buf[i+3] == lf:
			return i + 4
		}
	}
	return -1
}
