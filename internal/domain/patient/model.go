package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the slice of the patient record billing reads. Patient CRUD
// lives outside this service.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex       *string    `db:"sex" json:"sex,omitempty"`
	Pregnant  bool       `db:"pregnant" json:"pregnant"`
}

func (p *Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
