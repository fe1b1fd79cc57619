package lexer

import (
	"errors"
	"strconv"
	"strings"

	"github.com/xplshn/clex/pkg/token"
)

// scanNumber matches the longest numeric literal of src starting at i and
// returns its end and form. The match fails when the literal is directly
// followed by a letter, digit or underscore, or when a leading-zero literal
// holds an 8 or 9.
func scanNumber(src []rune, i int, binary bool) (int, token.ConstType, bool) {
	at := func(k int) rune {
		if k < len(src) {
			return src[k]
		}
		return 0
	}

	j := i
	var tag token.ConstType
	switch {
	case at(i) == '0' && (at(i+1) == 'x' || at(i+1) == 'X'):
		j = i + 2
		for isHexDigit(at(j)) {
			j++
		}
		if j == i+2 {
			return i, "", false
		}
		j = intSuffix(src, j)
		tag = token.ConstHex
	case binary && at(i) == '0' && (at(i+1) == 'b' || at(i+1) == 'B'):
		j = i + 2
		for at(j) == '0' || at(j) == '1' {
			j++
		}
		if j == i+2 {
			return i, "", false
		}
		j = intSuffix(src, j)
		tag = token.ConstBin
	default:
		for isDigit(at(j)) {
			j++
		}
		intDigits := j - i
		isFloat := false
		if at(j) == '.' {
			j++
			fracStart := j
			for isDigit(at(j)) {
				j++
			}
			if intDigits == 0 && j == fracStart {
				return i, "", false
			}
			isFloat = true
		}
		if at(j) == 'e' || at(j) == 'E' {
			k := j + 1
			if at(k) == '+' || at(k) == '-' {
				k++
			}
			if isDigit(at(k)) {
				for isDigit(at(k)) {
					k++
				}
				j = k
				isFloat = true
			}
		}

		switch {
		case isFloat:
			if strings.ContainsRune("fFlL", at(j)) {
				j++
			}
			tag = token.ConstFloat
		case intDigits > 1 && src[i] == '0':
			for _, d := range src[i+1 : j] {
				if d > '7' {
					return i, "", false
				}
			}
			j = intSuffix(src, j)
			tag = token.ConstOct
		default:
			j = intSuffix(src, j)
			tag = token.ConstInt
		}
	}

	if isIdentChar(at(j)) {
		return i, "", false
	}
	return j, tag, true
}

// intSuffix skips a u/U/l/L/ll/LL suffix combination.
func intSuffix(src []rune, j int) int {
	for n := 0; n < 3 && j < len(src) && strings.ContainsRune("uUlL", src[j]); n++ {
		j++
	}
	return j
}

// fitsUint64 reports whether an integer literal's value fits in 64 bits.
func fitsUint64(text string, tag token.ConstType) bool {
	digits := strings.TrimRight(text, "uUlL")
	var err error
	switch tag {
	case token.ConstBin:
		_, err = strconv.ParseUint(digits[2:], 2, 64)
	default:
		_, err = strconv.ParseUint(digits, 0, 64)
	}
	return !errors.Is(err, strconv.ErrRange)
}
