package skills

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrSkillExists      = errors.New("skill already exists")
	ErrSkillNil         = errors.New("skill is nil")
	ErrInvalidMetadata  = errors.New("invalid skill metadata")
	ErrUnknownOperation = errors.New("unknown skill operation")
)

// Registry stores skills by stable identifier.
type Registry struct {
	items map[string]Skill
}

// NewRegistry creates an empty skill registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Skill)}
}

// ValidateMetadata checks required metadata fields and id format.
func ValidateMetadata(meta SkillMetadata) error {
	id := strings.TrimSpace(meta.ID)
	name := strings.TrimSpace(meta.Name)
	desc := strings.TrimSpace(meta.Description)
	if id == "" || name == "" || desc == "" {
		return fmt.Errorf("%w: id, name, and description are required", ErrInvalidMetadata)
	}
	if !isValidID(id) {
		return fmt.Errorf("%w: invalid id format %q", ErrInvalidMetadata, id)
	}
	return nil
}

// Register adds a skill to the registry.
func (r *Registry) Register(skill Skill) error {
	if skill == nil {
		return ErrSkillNil
	}

	meta := skill.Metadata()
	if err := ValidateMetadata(meta); err != nil {
		return err
	}

	if _, ok := r.items[meta.ID]; ok {
		return ErrSkillExists
	}
	r.items[meta.ID] = skill
	return nil
}

// Resolve returns a skill by id.
func (r *Registry) Resolve(id string) (Skill, bool) {
	skill, ok := r.items[id]
	return skill, ok
}

// ListMetadata returns deterministic metadata ordering by id.
func (r *Registry) ListMetadata() []SkillMetadata {
	list := make([]SkillMetadata, 0, len(r.items))
	for _, skill := range r.items {
		list = append(list, skill.Metadata())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

func isValidID(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(id)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
