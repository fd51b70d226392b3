package pricing

import "time"

// AgeCategory is derived from the patient's birth date at visit time and is
// used only to pick an age discount rate.
type AgeCategory string

const (
	CategoryMinor  AgeCategory = "minor"
	CategoryAdult  AgeCategory = "adult"
	CategorySenior AgeCategory = "senior"
	CategoryElder  AgeCategory = "elder"
)

// AgeOn returns completed years between birth and asOf.
func AgeOn(birth, asOf time.Time) int {
	by, bm, bd := birth.Date()
	y, m, d := asOf.Date()
	age := y - by
	if m < bm || (m == bm && d < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// CategoryFor classifies a patient. An unknown birth date is treated as
// adult so no age discount is granted by accident.
func (r Rates) CategoryFor(birth *time.Time, asOf time.Time) AgeCategory {
	if birth == nil || birth.IsZero() {
		return CategoryAdult
	}
	age := AgeOn(*birth, asOf)
	switch {
	case age >= r.ElderAge:
		return CategoryElder
	case age >= r.SeniorAge:
		return CategorySenior
	case age < r.MinorAge:
		return CategoryMinor
	}
	return CategoryAdult
}
