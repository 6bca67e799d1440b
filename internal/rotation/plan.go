package rotation

import (
	"sort"
	"time"

	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	dserrors "github.com/systmms/awsops/internal/errors"
)

// MaxKeys is the number of access keys at which rotation refuses to run.
// IAM allows two keys per user; a second existing key means an earlier
// run did not finish cleaning up.
const MaxKeys = 2

// KeyStatus is the provider-side usability flag of an access key
type KeyStatus string

const (
	StatusActive   KeyStatus = KeyStatus(iamtypes.StatusTypeActive)
	StatusInactive KeyStatus = KeyStatus(iamtypes.StatusTypeInactive)
)

// AccessKeyRecord describes one existing access key of the principal
type AccessKeyRecord struct {
	ID        string
	Status    KeyStatus
	CreatedAt time.Time
}

// Active reports whether the key can currently authenticate
func (k AccessKeyRecord) Active() bool {
	return k.Status == StatusActive
}

// Plan is the decision taken from a key listing before anything is changed
type Plan struct {
	Principal string
	Keys      []AccessKeyRecord
	// Deactivate is the key to flip to Inactive, or nil.
	Deactivate *AccessKeyRecord
}

// ActiveCount returns the number of Active keys in the listing
func (p *Plan) ActiveCount() int {
	n := 0
	for _, k := range p.Keys {
		if k.Active() {
			n++
		}
	}
	return n
}

// NewPlan applies the key-count guard and picks the key to deactivate.
// A listing of MaxKeys or more keys yields a *GuardError and no plan.
func NewPlan(principal string, keys []AccessKeyRecord) (*Plan, error) {
	if len(keys) >= MaxKeys {
		return nil, &dserrors.GuardError{Principal: principal, Count: len(keys), Limit: MaxKeys}
	}

	sorted := make([]AccessKeyRecord, len(keys))
	copy(sorted, keys)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	plan := &Plan{Principal: principal, Keys: sorted}
	for i := range sorted {
		if sorted[i].Active() {
			plan.Deactivate = &sorted[i]
			break
		}
	}
	return plan, nil
}
