package service

import (
	"github.com/dentlab/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Principal is the authenticated actor behind a request.
type Principal struct {
	UserID   uuid.UUID
	Role     string
	ClinicID uuid.UUID // uuid.Nil for admins
}

func (p Principal) IsAdmin() bool {
	return p.Role == enum.RoleAdmin
}

// Scope returns the widest view the principal may read.
func (p Principal) Scope() Scope {
	if p.IsAdmin() {
		return AllClinics()
	}
	return ClinicOnly(p.ClinicID)
}

// Narrow applies an optional clinic filter. Admins may narrow to any clinic;
// clinic principals stay pinned to their own regardless of the filter.
func (p Principal) Narrow(clinicID *uuid.UUID) Scope {
	if p.IsAdmin() && clinicID != nil {
		return ClinicOnly(*clinicID)
	}
	return p.Scope()
}

// Scope restricts a read to every clinic or to exactly one.
type Scope struct {
	all      bool
	clinicID uuid.UUID
}

func AllClinics() Scope {
	return Scope{all: true}
}

func ClinicOnly(id uuid.UUID) Scope {
	return Scope{clinicID: id}
}

// Clinic returns the single clinic the scope is limited to, if any.
func (s Scope) Clinic() (uuid.UUID, bool) {
	if s.all {
		return uuid.Nil, false
	}
	return s.clinicID, true
}

// Allows reports whether a record owned by clinicID is visible in this scope.
func (s Scope) Allows(clinicID uuid.UUID) bool {
	return s.all || s.clinicID == clinicID
}

// filter is the nullable clinic_id query parameter for this scope.
func (s Scope) filter() pgtype.UUID {
	if s.all {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: s.clinicID, Valid: true}
}
