// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// string matching on driver errors.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRoleAssigned is returned when a role assignment is attempted for a
// user that already has a live role_users row. One authoritative role per
// user is an invariant enforced at write time; the existing assignment
// must be removed first.
var ErrRoleAssigned = errors.New("user already has a role assigned")

// DuplicateError reports a unique-constraint violation together with the
// offending key and value, so the HTTP layer can build the aggregated
// field:value message clients expect.
type DuplicateError struct {
	Key   string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate entry %q for %s", e.Value, e.Key)
}

// asDuplicate inspects a MySQL error and converts error 1062 into a
// *DuplicateError. The driver message has the shape:
//
//	Error 1062 (23000): Duplicate entry 'a@x.com' for key 'users.email'
//
// Returns nil when the error is not a duplicate-key violation.
func asDuplicate(err error) *DuplicateError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "1062") {
		return nil
	}
	dup := &DuplicateError{Key: "unique", Value: ""}
	if i := strings.Index(msg, "Duplicate entry '"); i >= 0 {
		rest := msg[i+len("Duplicate entry '"):]
		if j := strings.Index(rest, "'"); j >= 0 {
			dup.Value = rest[:j]
		}
	}
	if i := strings.Index(msg, "for key '"); i >= 0 {
		rest := msg[i+len("for key '"):]
		if j := strings.Index(rest, "'"); j >= 0 {
			key := rest[:j]
			// strip the table prefix: users.email -> email
			if k := strings.LastIndex(key, "."); k >= 0 {
				key = key[k+1:]
			}
			dup.Key = key
		}
	}
	return dup
}
