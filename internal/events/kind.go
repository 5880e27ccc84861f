package events

import "strings"

// Kind classifies a notification. Kinds form a hierarchy expressed as a
// dot-separated path: "registration" is a generalization of
// "registration.progress", which in turn generalizes
// "registration.progress.batch".
type Kind string

// Well-known kinds raised by the wizard and its workers.
const (
	KindWizard               Kind = "wizard"
	KindImageLoaded          Kind = "wizard.image_loaded"
	KindImageSaved           Kind = "wizard.image_saved"
	KindRegistration         Kind = "registration"
	KindRegistrationProgress Kind = "registration.progress"
	KindRegistrationDone     Kind = "registration.done"
)

// Matches reports whether k is equal to or a generalization of other.
// Matching is per path segment, so "reg" does not match "registration".
func (k Kind) Matches(other Kind) bool {
	if k == other {
		return true
	}
	return strings.HasPrefix(string(other), string(k)+".")
}

func (k Kind) String() string { return string(k) }
