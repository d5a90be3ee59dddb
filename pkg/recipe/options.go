package recipe

import (
	"fmt"
	"sort"
)

// Canonical boolean option values.
const (
	OptionTrue  = "true"
	OptionFalse = "false"
)

// Domain is the closed value domain of one declared option.
type Domain struct {
	// Values are the allowed values, in declaration order.
	Values []string `json:"values"`

	// Default is the default value. Must be a member of Values.
	Default string `json:"default"`
}

// BoolDomain returns a boolean option domain with the given default.
func BoolDomain(def bool) Domain {
	d := Domain{Values: []string{OptionTrue, OptionFalse}, Default: OptionFalse}
	if def {
		d.Default = OptionTrue
	}
	return d
}

// EnumDomain returns an enumerated option domain. The first argument is the
// default value.
func EnumDomain(def string, rest ...string) Domain {
	return Domain{Values: append([]string{def}, rest...), Default: def}
}

// Contains reports whether v is a member of the domain.
func (d Domain) Contains(v string) bool {
	for _, allowed := range d.Values {
		if v == allowed {
			return true
		}
	}
	return false
}

// OptionSet is the live option state of one recipe run. It starts as the
// declared domain with defaults and only ever shrinks: pruning an option is
// one-directional within a configuration pass.
type OptionSet struct {
	domains map[string]Domain
	values  map[string]string
}

// NewOptionSet builds an option set from a declared domain, with every
// option at its default value.
func NewOptionSet(declared map[string]Domain) *OptionSet {
	s := &OptionSet{
		domains: make(map[string]Domain, len(declared)),
		values:  make(map[string]string, len(declared)),
	}
	for name, d := range declared {
		s.domains[name] = d
		s.values[name] = d.Default
	}
	return s
}

// Has reports whether the option is still part of the live set.
func (s *OptionSet) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Set assigns a value to an option. Assigning to a pruned or undeclared
// option fails: a requested option that does not exist for the current
// settings/version must surface as a configuration error, never be ignored.
func (s *OptionSet) Set(name, value string) error {
	d, ok := s.domains[name]
	if !ok {
		return NewInvalidConfigurationError(
			fmt.Sprintf("option %q does not exist for this configuration", name), nil).
			WithCode(ErrCodeUnknownOption)
	}
	if !d.Contains(value) {
		return NewInvalidConfigurationError(
			fmt.Sprintf("invalid value %q for option %q (allowed: %v)", value, name, d.Values), nil).
			WithCode(ErrCodeInvalidOptionValue)
	}
	s.values[name] = value
	return nil
}

// Get returns the value of an option. Reading a pruned option is a
// programming error in the recipe and fails loudly.
func (s *OptionSet) Get(name string) (string, error) {
	v, ok := s.values[name]
	if !ok {
		return "", NewInvalidConfigurationError(
			fmt.Sprintf("option %q does not exist for this configuration", name), nil).
			WithCode(ErrCodeUnknownOption)
	}
	return v, nil
}

// GetSafe returns the value of an option, or ok=false when the option has
// been pruned. Mirrors the tolerant read used for conditionally declared
// options.
func (s *OptionSet) GetSafe(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Bool returns the boolean value of an option, treating a pruned option
// as false.
func (s *OptionSet) Bool(name string) bool {
	return s.values[name] == OptionTrue
}

// Delete prunes an option from the live set. Deleting an already pruned
// option is a no-op.
func (s *OptionSet) Delete(name string) {
	delete(s.domains, name)
	delete(s.values, name)
}

// Names returns the live option names in sorted order.
func (s *OptionSet) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the live option values.
func (s *OptionSet) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the option set.
func (s *OptionSet) Clone() *OptionSet {
	c := &OptionSet{
		domains: make(map[string]Domain, len(s.domains)),
		values:  make(map[string]string, len(s.values)),
	}
	for k, v := range s.domains {
		c.domains[k] = v
	}
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}
