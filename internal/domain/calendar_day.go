package domain

import (
	"errors"
	"iter"
	"strings"
	"time"
)

const (
	dayLayout     = "2006-01-02"
	dayJSONLayout = "2006-01-02T15:04:05.000Z"
)

// ErrUnparsableDay indica que el texto no representa una fecha reconocida.
var ErrUnparsableDay = errors.New("unparsable calendar day")

// acceptedLayouts lista los formatos aceptados al leer una fecha de entrada.
// Los formatos sin zona horaria se interpretan en UTC.
var acceptedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	dayLayout,
}

// CalendarDay representa un dia calendario UTC, sin componente horario.
// El valor cero no es un dia valido; usar DayOf o ParseCalendarDay.
type CalendarDay struct {
	t time.Time
}

// DayOf normaliza un instante al dia calendario UTC que lo contiene.
func DayOf(t time.Time) CalendarDay {
	u := t.UTC()
	return CalendarDay{t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseCalendarDay interpreta una fecha en cualquiera de los formatos aceptados.
func ParseCalendarDay(raw string) (CalendarDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CalendarDay{}, ErrUnparsableDay
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DayOf(t), nil
		}
	}
	return CalendarDay{}, ErrUnparsableDay
}

func (d CalendarDay) Time() time.Time { return d.t }

func (d CalendarDay) IsZero() bool { return d.t.IsZero() }

// AddDays avanza n dias calendario. Opera en UTC, sin saltos por horario de verano.
func (d CalendarDay) AddDays(n int) CalendarDay {
	return CalendarDay{t: d.t.AddDate(0, 0, n)}
}

func (d CalendarDay) Equal(o CalendarDay) bool { return d.t.Equal(o.t) }

func (d CalendarDay) Before(o CalendarDay) bool { return d.t.Before(o.t) }

func (d CalendarDay) After(o CalendarDay) bool { return d.t.After(o.t) }

// Compare devuelve -1, 0 o +1; apto para slices.SortFunc.
func (d CalendarDay) Compare(o CalendarDay) int { return d.t.Compare(o.t) }

// key identifica el dia para operaciones de conjunto.
func (d CalendarDay) key() int64 { return d.t.Unix() }

func (d CalendarDay) String() string { return d.t.Format(dayLayout) }

func (d CalendarDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.t.Format(dayJSONLayout) + `"`), nil
}

func (d *CalendarDay) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	day, err := ParseCalendarDay(raw)
	if err != nil {
		return err
	}
	*d = day
	return nil
}

// DateRange es un rango inclusivo de dias calendario con From <= To.
type DateRange struct {
	From CalendarDay `json:"from"`
	To   CalendarDay `json:"to"`
}

// ErrInvertedRange indica un rango cuyo inicio es posterior al fin.
var ErrInvertedRange = errors.New("range start is after range end")

func NewDateRange(from, to CalendarDay) (DateRange, error) {
	if from.After(to) {
		return DateRange{}, ErrInvertedRange
	}
	return DateRange{From: from, To: to}, nil
}

const secondsPerDay = 24 * 60 * 60

// Len devuelve la cantidad de dias del rango, ambos extremos incluidos.
// Se calcula sobre segundos Unix: time.Duration satura a los ~292 años.
func (r DateRange) Len() int {
	return int((r.To.t.Unix()-r.From.t.Unix())/secondsPerDay) + 1
}

func (r DateRange) Contains(d CalendarDay) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Days recorre el rango dia por dia. La secuencia es perezosa y puede
// recorrerse mas de una vez.
func (r DateRange) Days() iter.Seq[CalendarDay] {
	return func(yield func(CalendarDay) bool) {
		for d := r.From; !d.After(r.To); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}
