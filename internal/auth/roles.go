package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/lib/pq"
)

// RoleAdmin satisfies every role requirement.
const RoleAdmin = "ADMIN"

// RoleSet is a set of normalized role tags.
type RoleSet map[string]struct{}

// NewRoleSet normalizes roles into a set.
func NewRoleSet(roles ...string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r = normalizeRole(r); r != "" {
			s[r] = struct{}{}
		}
	}
	return s
}

// Has reports whether role is in the set. role is normalized first.
func (s RoleSet) Has(role string) bool {
	_, ok := s[normalizeRole(role)]
	return ok
}

// Slice returns the roles in sorted order. Never nil.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// filter keeps only the roles also present in known.
func (s RoleSet) filter(known RoleSet) RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		if _, ok := known[r]; ok {
			out[r] = struct{}{}
		}
	}
	return out
}

func normalizeRole(r string) string {
	return strings.ToUpper(strings.TrimSpace(r))
}

var errRolesEncoding = errors.New("unrecognized roles encoding")

// parseRoles decodes the accounts.roles column. The column has held three
// encodings over time, tried in this order:
//
//	["ADMIN","ORGANIZER"]        JSON array of strings
//	"[\"ADMIN\",\"ORGANIZER\"]"  JSON string wrapping that array
//	{ADMIN,ORGANIZER}            Postgres array literal, bare or JSON-quoted
//
// A NULL or empty column yields no roles and no error.
func parseRoles(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		wrapped = strings.TrimSpace(wrapped)
		if wrapped == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(wrapped), &list); err == nil {
			return list, nil
		}
		return parseArrayLiteral([]byte(wrapped))
	}

	return parseArrayLiteral(raw)
}

func parseArrayLiteral(b []byte) ([]string, error) {
	if len(b) < 2 || b[0] != '{' {
		return nil, errRolesEncoding
	}
	var arr pq.StringArray
	if err := arr.Scan(b); err != nil {
		return nil, errors.Join(errRolesEncoding, err)
	}
	return arr, nil
}
