package hts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidCode is returned when a classification code cannot be parsed
var ErrInvalidCode = errors.New("invalid HTS code")

var digitsOnly = regexp.MustCompile(`^\d+$`)

// TariffCode is a parsed Harmonized Tariff Schedule classification code.
// It renders as CCHH.SS.IISS where II is the tariff item and SS the statistical suffix.
type TariffCode struct {
	Chapter    string
	Heading    string
	Subheading string
	Item       string
	Suffix     string
}

// ParseCode normalizes a raw classification string into its canonical components.
//
// Dotted input is split on '.', undotted input needs at least six digits and is split
// positionally (4 digits chapter+heading, 2 digits subheading, remainder). Components
// after the subheading are joined so that both 3002.12.0010 and 3002.12.00.10 parse
// the same way. Missing item and suffix digits default to 00.
func ParseCode(raw string) (TariffCode, error) {
	cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))
	if cleaned == "" {
		return TariffCode{}, fmt.Errorf("%w: empty code", ErrInvalidCode)
	}

	var tokens []string
	if strings.Contains(cleaned, ".") {
		for _, t := range strings.Split(cleaned, ".") {
			if t != "" {
				tokens = append(tokens, t)
			}
		}
	} else {
		if len(cleaned) < 6 {
			return TariffCode{}, fmt.Errorf("%w: %q needs at least 6 digits", ErrInvalidCode, raw)
		}
		tokens = []string{cleaned[:4], cleaned[4:6]}
		if len(cleaned) > 6 {
			tokens = append(tokens, cleaned[6:])
		}
	}
	if len(tokens) == 0 {
		return TariffCode{}, fmt.Errorf("%w: %q", ErrInvalidCode, raw)
	}
	if len(tokens) > 3 {
		tokens = []string{tokens[0], tokens[1], strings.Join(tokens[2:], "")}
	}
	for _, t := range tokens {
		if !digitsOnly.MatchString(t) {
			return TariffCode{}, fmt.Errorf("%w: %q contains non-digit characters", ErrInvalidCode, raw)
		}
	}

	if len(tokens[0]) > 4 {
		return TariffCode{}, fmt.Errorf("%w: chapter and heading %q longer than 4 digits", ErrInvalidCode, tokens[0])
	}
	chapterHeading := leftPad(tokens[0], 4)

	subheading := "00"
	if len(tokens) > 1 {
		subheading = leftPad(tokens[1], 2)[:2]
	}

	item, suffix := "00", "00"
	if len(tokens) > 2 {
		rest := leftPad(tokens[2], 4)
		rest = rest[len(rest)-4:]
		item, suffix = rest[:2], rest[2:]
	}

	return TariffCode{
		Chapter:    chapterHeading[:2],
		Heading:    chapterHeading[2:],
		Subheading: subheading,
		Item:       item,
		Suffix:     suffix,
	}, nil
}

// NormalizeCode parses raw and returns its canonical dotted form
func NormalizeCode(raw string) (string, error) {
	code, err := ParseCode(raw)
	if err != nil {
		return "", err
	}
	return code.String(), nil
}

// String renders the canonical CCHH.SS.IISS form
func (c TariffCode) String() string {
	return fmt.Sprintf("%s%s.%s.%s%s", c.Chapter, c.Heading, c.Subheading, c.Item, c.Suffix)
}

// HeadingPrefix returns the four digit chapter+heading prefix
func (c TariffCode) HeadingPrefix() string {
	return c.Chapter + c.Heading
}

// WithZeroSuffix returns a copy of the code whose statistical suffix is 00
func (c TariffCode) WithZeroSuffix() TariffCode {
	c.Suffix = "00"
	return c
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
