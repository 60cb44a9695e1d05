package table

import "fmt"

// Knob is one BIOS knob assignment.
type Knob struct {
	Name  string
	Value string
}

func (k Knob) String() string {
	return k.Name + "=" + k.Value
}

// FeatureKey identifies a feature setting.
type FeatureKey struct {
	Feature string
	Value   string
}

// FeatureTable maps feature settings to ordered knob assignments.
// Keys keep declaration order; declared rows take precedence over
// entries merged in from a knob dump.
type FeatureTable struct {
	keys  []FeatureKey
	knobs map[FeatureKey][]Knob
}

// NewFeatureTable returns an empty table.
func NewFeatureTable() *FeatureTable {
	return &FeatureTable{knobs: make(map[FeatureKey][]Knob)}
}

// Declare appends a knob to a feature setting. Declaring the same knob
// twice for one setting is an error.
func (f *FeatureTable) Declare(key FeatureKey, knob Knob) error {
	existing, ok := f.knobs[key]
	if !ok {
		f.keys = append(f.keys, key)
	}
	for _, k := range existing {
		if k.Name == knob.Name {
			return fmt.Errorf("feature %q value %q: knob %q declared twice", key.Feature, key.Value, knob.Name)
		}
	}
	f.knobs[key] = append(existing, knob)
	return nil
}

// AddIfAbsent adds a setting only when the key is new. Returns whether
// the entry was added.
func (f *FeatureTable) AddIfAbsent(key FeatureKey, knobs []Knob) bool {
	if _, ok := f.knobs[key]; ok {
		return false
	}
	f.keys = append(f.keys, key)
	f.knobs[key] = append([]Knob(nil), knobs...)
	return true
}

// Lookup returns the knobs of a feature setting.
func (f *FeatureTable) Lookup(feature, value string) ([]Knob, bool) {
	knobs, ok := f.knobs[FeatureKey{Feature: feature, Value: value}]
	if !ok {
		return nil, false
	}
	return append([]Knob(nil), knobs...), true
}

// Keys returns every feature setting in insertion order.
func (f *FeatureTable) Keys() []FeatureKey {
	return append([]FeatureKey(nil), f.keys...)
}

// Features returns the distinct feature names in insertion order.
func (f *FeatureTable) Features() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range f.keys {
		if !seen[k.Feature] {
			seen[k.Feature] = true
			out = append(out, k.Feature)
		}
	}
	return out
}

// Len returns the number of feature settings.
func (f *FeatureTable) Len() int {
	return len(f.keys)
}

// Clone returns an independent copy.
func (f *FeatureTable) Clone() *FeatureTable {
	c := &FeatureTable{
		keys:  append([]FeatureKey(nil), f.keys...),
		knobs: make(map[FeatureKey][]Knob, len(f.knobs)),
	}
	for k, v := range f.knobs {
		c.knobs[k] = append([]Knob(nil), v...)
	}
	return c
}
