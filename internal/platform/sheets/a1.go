package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnName converts a zero-based column index to A1 letters (0=A, 26=AA).
func ColumnName(index int) string {
	if index < 0 {
		return ""
	}
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// FirstRow extracts the first row number from a range such as
// "'Sheet1'!A5:Z7" or "Sheet1!A5".
func FirstRow(a1 string) (int, error) {
	ref := a1
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	ref, _, _ = strings.Cut(ref, ":")
	ref = strings.TrimLeft(ref, "$ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	ref = strings.TrimPrefix(ref, "$")
	n, err := strconv.Atoi(ref)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("no row number in range %q", a1)
	}
	return n, nil
}
