package icp

import (
	"bytes"
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/signal"
)

// Set is a validated, read-only collection of profiles. It is safe to share
// across scoring workers.
type Set struct {
	profiles map[string]*Profile
	order    []string
}

// fileFormat is the on-disk layout of an ICP file.
type fileFormat struct {
	Profiles []Profile `yaml:"profiles"`
}

// NewSet validates profiles and builds a Set. The first profile is the default.
func NewSet(profiles []Profile, reg *signal.Registry) (*Set, error) {
	if len(profiles) == 0 {
		return nil, &config.ValidationError{Source: "profiles", Problems: []string{"at least one profile is required"}}
	}
	s := &Set{profiles: make(map[string]*Profile, len(profiles))}
	for i := range profiles {
		p := profiles[i]
		applyDefaults(&p)
		if err := Validate(&p, reg); err != nil {
			return nil, err
		}
		if _, dup := s.profiles[p.Name]; dup {
			return nil, &config.ValidationError{Source: "profiles", Problems: []string{"duplicate profile " + p.Name}}
		}
		s.profiles[p.Name] = &p
		s.order = append(s.order, p.Name)
	}
	return s, nil
}

// DefaultSet returns the built-in profiles.
func DefaultSet(reg *signal.Registry) (*Set, error) {
	return NewSet(DefaultProfiles(), reg)
}

// Load reads profiles from a YAML file.
//
// A missing file (or an empty path) falls back to the built-in profiles.
// A file that exists but cannot be parsed or validated is a
// *config.ValidationError.
func Load(path string, reg *signal.Registry) (*Set, error) {
	if path == "" {
		return DefaultSet(reg)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("icp: profile file not found, using built-in profiles", zap.String("path", path))
		return DefaultSet(reg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "icp: read %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var ff fileFormat
	if err := dec.Decode(&ff); err != nil {
		zap.L().Error("icp: malformed profile file", zap.String("path", path), zap.Error(err))
		return nil, &config.ValidationError{Source: path, Problems: []string{err.Error()}}
	}

	set, err := NewSet(ff.Profiles, reg)
	if err != nil {
		zap.L().Error("icp: invalid profile file", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	zap.L().Info("icp: loaded profiles", zap.String("path", path), zap.Strings("profiles", set.Names()))
	return set, nil
}

// Get returns a profile by name.
func (s *Set) Get(name string) (*Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// Default returns the first profile in the set.
func (s *Set) Default() *Profile {
	return s.profiles[s.order[0]]
}

// Names returns profile names in file order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Match returns the first profile (in file order) that targets the
// prospect's industry and country, falling back to the default profile.
func (s *Set) Match(p *model.Prospect) *Profile {
	for _, name := range s.order {
		prof := s.profiles[name]
		if len(prof.Industries) == 0 && len(prof.Countries) == 0 {
			continue
		}
		if prof.Matches(p) {
			return prof
		}
	}
	return s.Default()
}
