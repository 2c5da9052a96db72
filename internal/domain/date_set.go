package domain

// Las funciones de este archivo tratan un []CalendarDay como conjunto
// ordenado por orden de almacenamiento: nunca contienen dos veces el mismo dia.

func indexDays(set []CalendarDay) map[int64]struct{} {
	idx := make(map[int64]struct{}, len(set))
	for _, d := range set {
		idx[d.key()] = struct{}{}
	}
	return idx
}

// MissingDays devuelve los dias de days que no estan en set, sin repetidos
// y en el orden de days.
func MissingDays(days, set []CalendarDay) []CalendarDay {
	seen := indexDays(set)
	out := make([]CalendarDay, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d.key()]; ok {
			continue
		}
		seen[d.key()] = struct{}{}
		out = append(out, d)
	}
	return out
}

// PresentDays devuelve los dias de days que ya estan en set, sin repetidos
// y en el orden de days.
func PresentDays(days, set []CalendarDay) []CalendarDay {
	inSet := indexDays(set)
	taken := make(map[int64]struct{}, len(days))
	out := make([]CalendarDay, 0, len(days))
	for _, d := range days {
		if _, ok := inSet[d.key()]; !ok {
			continue
		}
		if _, dup := taken[d.key()]; dup {
			continue
		}
		taken[d.key()] = struct{}{}
		out = append(out, d)
	}
	return out
}

// AppendDays agrega al final de set los dias que falten.
func AppendDays(set, days []CalendarDay) []CalendarDay {
	missing := MissingDays(days, set)
	out := make([]CalendarDay, 0, len(set)+len(missing))
	out = append(out, set...)
	return append(out, missing...)
}

// RemoveDays quita de set los dias indicados conservando el orden relativo
// del resto.
func RemoveDays(set, days []CalendarDay) []CalendarDay {
	drop := indexDays(days)
	out := make([]CalendarDay, 0, len(set))
	for _, d := range set {
		if _, ok := drop[d.key()]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}
