package enums

import "fmt"

// UserRole mirrors the roles issued by the identity service.
type UserRole string

const (
	RoleAdmin               UserRole = "admin"
	RoleClient              UserRole = "client"
	RoleMedicalPractitioner UserRole = "medical_practitioner"
	RolePharmacy            UserRole = "pharmacy"
	RoleMedLab              UserRole = "medlab"
	RoleEmergencyServices   UserRole = "emergency_services"
)

var validUserRoles = []UserRole{
	RoleAdmin,
	RoleClient,
	RoleMedicalPractitioner,
	RolePharmacy,
	RoleMedLab,
	RoleEmergencyServices,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}

// StockKindForRole returns the catalog a seller role may maintain.
func StockKindForRole(role UserRole) (StockKind, bool) {
	switch role {
	case RolePharmacy:
		return StockKindPharmacy, true
	case RoleMedLab:
		return StockKindMedLab, true
	}
	return "", false
}
