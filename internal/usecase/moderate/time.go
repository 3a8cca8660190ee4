package moderate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnparsableTime возвращается, если текст не похож ни на один формат.
var ErrUnparsableTime = errors.New("не удалось разобрать время")

var (
	timeOnlyRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	dateTimeRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\s+(\d{1,2}):(\d{2})$`)
	relativeRe = regexp.MustCompile(`^\+(\d+)([hmd])$`)
)

// ParseScheduleTime разбирает время публикации из текста модератора в его
// часовом поясе. Поддерживаются три формы: "15:04" (ближайшее такое время),
// "02.01 15:04" (ближайшая такая дата) и "+2h"/"+30m"/"+1d". Результат
// всегда в UTC.
func ParseScheduleTime(text string, loc *time.Location, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return time.Time{}, ErrUnparsableTime
	}
	local := now.In(loc)

	if m := timeOnlyRe.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		if hours > 23 || minutes > 59 {
			return time.Time{}, ErrUnparsableTime
		}
		at := time.Date(local.Year(), local.Month(), local.Day(), hours, minutes, 0, 0, loc)
		if !at.After(local) {
			at = at.AddDate(0, 0, 1)
		}
		return at.UTC(), nil
	}

	if m := dateTimeRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		hours, _ := strconv.Atoi(m[3])
		minutes, _ := strconv.Atoi(m[4])
		if day < 1 || day > 31 || month < 1 || month > 12 || hours > 23 || minutes > 59 {
			return time.Time{}, ErrUnparsableTime
		}
		at := time.Date(local.Year(), time.Month(month), day, hours, minutes, 0, 0, loc)
		if at.Before(local) {
			at = at.AddDate(1, 0, 0)
		}
		return at.UTC(), nil
	}

	if m := relativeRe.FindStringSubmatch(text); m != nil {
		amount, _ := strconv.Atoi(m[1])
		utc := now.UTC()
		switch m[2] {
		case "h":
			if amount >= 1 && amount <= 24 {
				return utc.Add(time.Duration(amount) * time.Hour), nil
			}
		case "m":
			if amount >= 1 && amount <= 1440 {
				return utc.Add(time.Duration(amount) * time.Minute), nil
			}
		case "d":
			if amount >= 1 && amount <= 30 {
				return utc.AddDate(0, 0, amount), nil
			}
		}
		return time.Time{}, ErrUnparsableTime
	}

	return time.Time{}, ErrUnparsableTime
}
