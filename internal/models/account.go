package models

import (
	"time"

	"github.com/google/uuid"
)

// Account statuses
const (
	AccountStatusActive   = "active"
	AccountStatusInactive = "inactive"
)

// Search feature names grantable to managed accounts
const (
	FeatureMobile         = "mobile"
	FeatureEmail          = "email"
	FeatureNationalIDA    = "national-id-a"
	FeatureNationalIDB    = "national-id-b"
	FeatureVehicleInfo    = "vehicle-info"
	FeatureVehicleChallan = "vehicle-challan"
	FeatureIP             = "ip"
)

// AllFeatures is the closed feature vocabulary in canonical order.
// Feature updates are intersected against this list; names outside it
// never persist.
var AllFeatures = []string{
	FeatureMobile,
	FeatureEmail,
	FeatureNationalIDA,
	FeatureNationalIDB,
	FeatureVehicleInfo,
	FeatureVehicleChallan,
	FeatureIP,
}

type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Name         string
	PasswordHash string
	Status       string // "active", "inactive"
	Features     []string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// HasFeature reports whether the account may use the named search feature.
// An empty feature set grants the whole vocabulary.
func (a *Account) HasFeature(name string) bool {
	if len(a.Features) == 0 {
		return IsKnownFeature(name)
	}
	for _, f := range a.Features {
		if f == name {
			return true
		}
	}
	return false
}

// EffectiveFeatures returns the granted set, expanding an empty set to the
// full vocabulary.
func (a *Account) EffectiveFeatures() []string {
	if len(a.Features) == 0 {
		out := make([]string, len(AllFeatures))
		copy(out, AllFeatures)
		return out
	}
	return NormalizeFeatures(a.Features)
}

// IsKnownFeature reports whether name is part of the feature vocabulary.
func IsKnownFeature(name string) bool {
	for _, f := range AllFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// NormalizeFeatures intersects the input with the feature vocabulary,
// dropping unrecognized names and duplicates. Vocabulary order is preserved
// regardless of input order.
func NormalizeFeatures(in []string) []string {
	requested := make(map[string]bool, len(in))
	for _, f := range in {
		requested[f] = true
	}

	out := make([]string, 0, len(AllFeatures))
	for _, f := range AllFeatures {
		if requested[f] {
			out = append(out, f)
		}
	}
	return out
}
