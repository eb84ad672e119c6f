package chartcrafter

import (
	"crypto/subtle"
	"log/slog"
)

// Decision is the outcome of a single Authorizer.
type Decision int

const (
	// NotApplicable means the authorizer had nothing to check.
	NotApplicable Decision = iota
	Grant
	Deny
)

func (d Decision) String() string {
	switch d {
	case Grant:
		return "grant"
	case Deny:
		return "deny"
	default:
		return "not_applicable"
	}
}

// Authorizer decides whether credentials permit an action on a record.
type Authorizer interface {
	Authorize(creds Credentials, record ChartRecord) Decision
}

// MasterKeyAuthorizer grants when the bearer token equals the configured
// master key. It is not applicable when either side is empty.
type MasterKeyAuthorizer struct {
	Key string
}

func (a MasterKeyAuthorizer) Authorize(creds Credentials, _ ChartRecord) Decision {
	if a.Key == "" || creds.BearerToken == "" {
		return NotApplicable
	}
	if SecureEqual(creds.BearerToken, a.Key) {
		return Grant
	}
	return Deny
}

// PasswordAuthorizer grants when the supplied password matches the record's
// deletion password hash, or its legacy plaintext password.
type PasswordAuthorizer struct {
	Hasher *Hasher
}

func (a PasswordAuthorizer) Authorize(creds Credentials, record ChartRecord) Decision {
	if creds.Password == "" {
		return NotApplicable
	}

	switch {
	case record.PasswordHash != "":
		ok, err := a.Hasher.Verify(creds.Password, record.PasswordHash)
		if err != nil {
			slog.Warn("unusable password hash", "id", record.ID, "error", err)
			return Deny
		}
		if ok {
			return Grant
		}
		return Deny
	case record.LegacyPassword != "":
		if SecureEqual(creds.Password, record.LegacyPassword) {
			return Grant
		}
		return Deny
	default:
		return NotApplicable
	}
}

// Authorize runs authorizers in order and stops at the first Grant.
//
// Returns nil on grant, ErrCredentialRequired when every authorizer was
// not applicable, and ErrInvalidCredential otherwise.
func Authorize(creds Credentials, record ChartRecord, authorizers ...Authorizer) error {
	denied := false
	for _, a := range authorizers {
		switch a.Authorize(creds, record) {
		case Grant:
			return nil
		case Deny:
			denied = true
		}
	}

	if denied {
		return ErrInvalidCredential
	}
	return ErrCredentialRequired
}

// SecureEqual compares two secrets in constant time.
func SecureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
