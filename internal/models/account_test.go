package models

import (
	"reflect"
	"testing"
)

func TestNormalizeFeatures(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "all valid features pass through",
			input:    []string{FeatureMobile, FeatureEmail, FeatureIP},
			expected: []string{FeatureMobile, FeatureEmail, FeatureIP},
		},
		{
			name:     "unrecognized names dropped",
			input:    []string{FeatureMobile, "telegram", FeatureIP, "darkweb"},
			expected: []string{FeatureMobile, FeatureIP},
		},
		{
			name:     "vocabulary order preserved regardless of input order",
			input:    []string{FeatureIP, FeatureMobile, FeatureVehicleInfo},
			expected: []string{FeatureMobile, FeatureVehicleInfo, FeatureIP},
		},
		{
			name:     "duplicates collapsed",
			input:    []string{FeatureEmail, FeatureEmail, FeatureEmail},
			expected: []string{FeatureEmail},
		},
		{
			name:     "all unknown yields empty",
			input:    []string{"foo", "bar"},
			expected: []string{},
		},
		{
			name:     "empty input yields empty",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "nil input yields empty",
			input:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeFeatures(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("NormalizeFeatures(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestHasFeature(t *testing.T) {
	tests := []struct {
		name     string
		features []string
		check    string
		expected bool
	}{
		{name: "empty set grants any vocabulary feature", features: nil, check: FeatureMobile, expected: true},
		{name: "empty set grants vehicle challan", features: []string{}, check: FeatureVehicleChallan, expected: true},
		{name: "empty set does not grant unknown name", features: nil, check: "telegram", expected: false},
		{name: "explicit set grants listed feature", features: []string{FeatureEmail, FeatureIP}, check: FeatureIP, expected: true},
		{name: "explicit set denies unlisted feature", features: []string{FeatureEmail, FeatureIP}, check: FeatureMobile, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{Features: tt.features}
			result := a.HasFeature(tt.check)
			if result != tt.expected {
				t.Errorf("HasFeature(%q) with features %v = %v, want %v", tt.check, tt.features, result, tt.expected)
			}
		})
	}
}

func TestEffectiveFeatures(t *testing.T) {
	t.Run("empty set expands to full vocabulary", func(t *testing.T) {
		a := &Account{}
		result := a.EffectiveFeatures()
		if !reflect.DeepEqual(result, AllFeatures) {
			t.Errorf("EffectiveFeatures() = %v, want %v", result, AllFeatures)
		}
	})

	t.Run("explicit set is normalized", func(t *testing.T) {
		a := &Account{Features: []string{FeatureIP, FeatureMobile, "bogus"}}
		result := a.EffectiveFeatures()
		expected := []string{FeatureMobile, FeatureIP}
		if !reflect.DeepEqual(result, expected) {
			t.Errorf("EffectiveFeatures() = %v, want %v", result, expected)
		}
	})
}

func TestIsActive(t *testing.T) {
	active := &Account{Status: AccountStatusActive}
	if !active.IsActive() {
		t.Error("expected active account to report IsActive")
	}

	inactive := &Account{Status: AccountStatusInactive}
	if inactive.IsActive() {
		t.Error("expected inactive account to not report IsActive")
	}
}
