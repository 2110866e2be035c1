package domain

import (
	"errors"
	"regexp"
	"strings"
)

// LocalCountryCode is the dialing prefix stripped from international numbers.
const LocalCountryCode = "261"

var (
	ErrInvalidPhone  = errors.New("invalid phone number")
	localPhoneFormat = regexp.MustCompile(`^0\d{9}$`)
	phoneSeparators  = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
)

// NormalizePhone converts a user supplied number into the local 10 digit form (0XXXXXXXXX).
func NormalizePhone(raw string) (string, error) {
	phone := phoneSeparators.Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(phone, "+"+LocalCountryCode):
		phone = "0" + strings.TrimPrefix(phone, "+"+LocalCountryCode)
	case strings.HasPrefix(phone, "00"+LocalCountryCode):
		phone = "0" + strings.TrimPrefix(phone, "00"+LocalCountryCode)
	case len(phone) == len(LocalCountryCode)+9 && strings.HasPrefix(phone, LocalCountryCode):
		phone = "0" + strings.TrimPrefix(phone, LocalCountryCode)
	}
	if !localPhoneFormat.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
