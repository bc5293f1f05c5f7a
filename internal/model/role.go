package model

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the canonical role enum used by every authorization check
type Role string

const (
	RoleAdmin             Role = "ADMIN"
	RoleClinicAdmin       Role = "CLINIC_ADMIN"
	RoleClinicStaff       Role = "CLINIC_STAFF"
	RoleHospitalAdmin     Role = "HOSPITAL_ADMIN"
	RoleHospitalStaff     Role = "HOSPITAL_STAFF"
	RoleManufacturerAdmin Role = "MANUFACTURER_ADMIN"
	RoleManufacturerStaff Role = "MANUFACTURER_STAFF"
	RoleUnknown           Role = ""
)

// NormalizeRole maps a stored role string, legacy lowercase or canonical, to a
// canonical Role. Organisation-scoped legacy roles ("staff", "doctor") are
// resolved through the organisation type.
func NormalizeRole(role, orgType string) Role {
	r := strings.ToUpper(strings.TrimSpace(role))
	t := strings.ToUpper(strings.TrimSpace(orgType))

	switch Role(r) {
	case RoleAdmin, RoleClinicAdmin, RoleClinicStaff, RoleHospitalAdmin,
		RoleHospitalStaff, RoleManufacturerAdmin, RoleManufacturerStaff:
		return Role(r)
	}

	switch r {
	case "SUPER_ADMIN", "PLATFORM_ADMIN":
		return RoleAdmin
	case "CLINIC":
		return RoleClinicAdmin
	case "HOSPITAL":
		return RoleHospitalAdmin
	case "MANUFACTURER":
		return RoleManufacturerAdmin
	case "OWNER":
		return adminFor(t)
	case "STAFF", "DOCTOR", "NURSE", "RECEPTIONIST", "PHARMACIST":
		return staffFor(t)
	}
	return RoleUnknown
}

func adminFor(orgType string) Role {
	switch orgType {
	case OrgTypeClinic:
		return RoleClinicAdmin
	case OrgTypeHospital:
		return RoleHospitalAdmin
	case OrgTypeManufacturer:
		return RoleManufacturerAdmin
	case OrgTypePlatform:
		return RoleAdmin
	}
	return RoleUnknown
}

func staffFor(orgType string) Role {
	switch orgType {
	case OrgTypeClinic:
		return RoleClinicStaff
	case OrgTypeHospital:
		return RoleHospitalStaff
	case OrgTypeManufacturer:
		return RoleManufacturerStaff
	}
	return RoleUnknown
}

func (r Role) IsManufacturer() bool {
	return r == RoleManufacturerAdmin || r == RoleManufacturerStaff
}

// IsBuyer reports whether the role belongs to an ordering organisation
func (r Role) IsBuyer() bool {
	switch r {
	case RoleClinicAdmin, RoleClinicStaff, RoleHospitalAdmin, RoleHospitalStaff:
		return true
	}
	return false
}

// Actor is the already-authenticated caller that every service operation receives
type Actor struct {
	UserID           uuid.UUID
	OrganisationID   uuid.UUID
	OrganisationType string
	Role             Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// UserRef returns the user id for created_by style columns
func (a Actor) UserRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
