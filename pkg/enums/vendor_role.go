package enums

import (
	"fmt"
	"strings"
)

// VendorRole classifies the seller behind a cart line item.
type VendorRole string

const (
	VendorRoleChef      VendorRole = "chef"
	VendorRoleVendor    VendorRole = "vendor"
	VendorRoleTopVendor VendorRole = "top_vendor"
	VendorRolePharmacy  VendorRole = "pharmacy"
)

var validVendorRoles = []VendorRole{
	VendorRoleChef,
	VendorRoleVendor,
	VendorRoleTopVendor,
	VendorRolePharmacy,
}

// String implements fmt.Stringer.
func (r VendorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known VendorRole.
func (r VendorRole) IsValid() bool {
	for _, candidate := range validVendorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseVendorRole accepts case-insensitive input and the "topvendor"/"top-vendor" spellings.
func ParseVendorRole(value string) (VendorRole, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "topvendor" {
		normalized = string(VendorRoleTopVendor)
	}
	for _, candidate := range validVendorRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor role %q", value)
}
