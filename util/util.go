// Package util contains misc internal utilities.
package util

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// IntSliceToDelimited converts a slice of ints to delimited text.
// e.g., []int{1,2,3,4,5}, " " => "1 2 3 4 5"
func IntSliceToDelimited(is []int, sep string) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, sep)
}

// FloatSliceToDelimited converts a slice of floats to delimited text, each
// value rendered with FormatSetting
func FloatSliceToDelimited(fs []float64, sep string) string {
	s := make([]string, len(fs))
	for i, v := range fs {
		s[i] = FormatSetting(v)
	}
	return strings.Join(s, sep)
}

// FormatSetting renders a float the way the acquisition host prints a double:
// at most 15 significant digits, no trailing zeros, exponent form (1E-05)
// outside of [1e-5, 1e15), and negative zero as "0".
func FormatSetting(f float64) string {
	if f == 0 {
		return "0"
	}
	s := strconv.FormatFloat(f, 'g', 15, 64)
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		return trimMantissa(s[:i]) + "E" + s[i+1:]
	}
	return trimMantissa(s)
}

func trimMantissa(m string) string {
	if !strings.Contains(m, ".") {
		return m
	}
	m = strings.TrimRight(m, "0")
	return strings.TrimSuffix(m, ".")
}

// ParseBracketList splits "[a b c]" (brackets optional) on whitespace
func ParseBracketList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.Fields(s)
}

// MillisToDuration converts an integer number of milliseconds to a Duration
func MillisToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}
