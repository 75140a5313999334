package opportunity

import "time"

type Type string

const (
	TypeInternship Type = "internship"
	TypeAttachment Type = "attachment"
)

// DefaultFee is charged when an opportunity carries no explicit fee,
// in whole currency units (KES).
const DefaultFee int64 = 350

// Opportunity is the listing a user applies against. The application core
// reads it only for the charge amount and the letter requirement.
type Opportunity struct {
	ID             int64
	Title          string
	Company        string
	Description    string
	Type           Type
	ApplicationFee int64 // whole units; 0 means "use DefaultFee"
	Deadline       time.Time
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fee returns the amount to charge for an application, in whole units.
func (o *Opportunity) Fee() int64 {
	if o.ApplicationFee > 0 {
		return o.ApplicationFee
	}
	return DefaultFee
}

// RequiresLetter reports whether a recommendation letter is mandatory.
func (o *Opportunity) RequiresLetter() bool {
	return o.Type == TypeAttachment
}

// ValidType reports whether t is a known opportunity type.
func ValidType(t Type) bool {
	return t == TypeInternship || t == TypeAttachment
}
