package flatcodec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const nanosPerSecond = 1_000_000_000

// FormatTimestamp writes t as decimal seconds since the epoch. The fraction
// is exact to the nanosecond and trimmed of trailing zeros.
func FormatTimestamp(t time.Time) string {
	sec := t.Unix()
	nsec := int64(t.Nanosecond())
	if nsec == 0 {
		return strconv.FormatInt(sec, 10)
	}

	sign := ""
	if sec < 0 {
		// Unix() floors, so -1.5s is sec=-2, nsec=5e8.
		sign = "-"
		sec = -(sec + 1)
		nsec = nanosPerSecond - nsec
	}
	frac := strings.TrimRight(fmt.Sprintf("%09d", nsec), "0")
	return sign + strconv.FormatInt(sec, 10) + "." + frac
}

// ParseTimestamp reads decimal seconds since the epoch. Plain decimals are
// parsed exactly; decimals with an exponent are parsed as a float. Hex,
// underscores, Inf and NaN are rejected.
func ParseTimestamp(s string) (time.Time, bool) {
	if t, ok := parseDecimalSeconds(s); ok {
		return t, true
	}
	if !isExponentDecimal(s) {
		return time.Time{}, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	sec := math.Floor(f)
	if sec > math.MaxInt64/2 || sec < math.MinInt64/2 {
		return time.Time{}, false
	}
	nsec := math.Round((f - sec) * nanosPerSecond)
	return time.Unix(int64(sec), int64(nsec)).UTC(), true
}

func parseDecimalSeconds(s string) (time.Time, bool) {
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(body, ".")
	if intPart == "" && frac == "" {
		return time.Time{}, false
	}
	if !allDigits(intPart) || !allDigits(frac) {
		return time.Time{}, false
	}

	var sec int64
	if intPart != "" {
		n, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		sec = n
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	var nsec int64
	if frac != "" {
		n, _ := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		nsec = n
	}
	if neg {
		sec, nsec = -sec, -nsec
	}
	return time.Unix(sec, nsec).UTC(), true
}

// isExponentDecimal matches [+-]digits[.digits](e|E)[+-]digits, with at least
// one mantissa digit.
func isExponentDecimal(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	mantissa, exp, ok := strings.Cut(strings.ToLower(s), "e")
	if !ok {
		return false
	}
	intPart, frac, _ := strings.Cut(mantissa, ".")
	if intPart+frac == "" || !allDigits(intPart) || !allDigits(frac) {
		return false
	}
	if exp != "" && (exp[0] == '+' || exp[0] == '-') {
		exp = exp[1:]
	}
	return exp != "" && allDigits(exp)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseBool accepts only the literal strings "true" and "false".
func ParseBool(s string) (bool, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// parseIndex reads a non-negative positional index.
func parseIndex(s string) (int, bool) {
	if s == "" || !allDigits(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
