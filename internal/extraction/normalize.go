package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"cardscan/internal/logger"
	"cardscan/pkg/models"
)

const isoDateLayout = "2006-01-02"

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	// dateparse reads longer digit runs as Unix timestamps.
	longDigitsPattern = regexp.MustCompile(`^\d{9,}$`)
)

// Normalize reformats the date of birth to YYYY-MM-DD and upper-cases a valid gender
// code. Values it cannot fix are left as they are.
func Normalize(record models.Record) models.Record {
	record.DateOfBirth = NormalizeDate(record.DateOfBirth)
	record.Gender = NormalizeGender(record.Gender)
	return record
}

// NormalizeDate returns s unchanged when it is already YYYY-MM-DD. Otherwise s is
// parsed as a date (slash dates are month first) and reformatted as the UTC calendar
// date. An unparseable s, or one that is nine or more digits and nothing else, is
// returned unchanged.
func NormalizeDate(s string) string {
	if isoDatePattern.MatchString(s) {
		return s
	}

	trimmed := strings.TrimSpace(s)
	if longDigitsPattern.MatchString(trimmed) {
		log := logger.WithComponent("normalize")
		log.Warn().
			Str("date_of_birth", s).
			Msg("Date of birth is a bare number and was left unchanged")
		return s
	}

	t, err := dateparse.ParseIn(trimmed, time.UTC)
	if err != nil {
		log := logger.WithComponent("normalize")
		log.Warn().
			Str("date_of_birth", s).
			Err(err).
			Msg("Date of birth is not in YYYY-MM-DD format and could not be auto-corrected")
		return s
	}
	return t.UTC().Format(isoDateLayout)
}

// NormalizeGender upper-cases m and f; anything else passes through.
func NormalizeGender(s string) string {
	switch upper := strings.ToUpper(s); upper {
	case models.GenderMale, models.GenderFemale:
		return upper
	default:
		return s
	}
}
