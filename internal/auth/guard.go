package auth

// Decide reports whether id may access a resource guarded by required.
// It returns nil, ErrUnauthorized or ErrForbidden.
func Decide(required []string, id *Identity) error {
	if len(required) == 0 {
		return nil
	}
	if id == nil || id.Roles == nil {
		return ErrUnauthorized
	}
	if id.Roles.Has(RoleAdmin) {
		return nil
	}
	for _, r := range required {
		if id.Roles.Has(r) {
			return nil
		}
	}
	return ErrForbidden
}
