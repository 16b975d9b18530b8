package skills

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/karsk/voicectl/internal/testutil/testlog"
)

type fakeSkill struct {
	meta SkillMetadata
}

func (f fakeSkill) Metadata() SkillMetadata {
	return f.meta
}

func (f fakeSkill) Operations() []OperationSpec {
	return []OperationSpec{{Name: "status", Description: "fake status", Idempotent: true}}
}

func (f fakeSkill) Invoke(ctx context.Context, sess *Session, op string, args map[string]string) (SkillResult, error) {
	return SkillResult{Status: "ok", ExitCode: 0}, nil
}

func TestRegisterResolveAndDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	s := fakeSkill{meta: SkillMetadata{ID: "skill.fake", Name: "Fake", Description: "Deterministic fake skill"}}

	if err := r.Register(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(s); !errors.Is(err, ErrSkillExists) {
		t.Fatalf("expected ErrSkillExists, got %v", err)
	}
	got, ok := r.Resolve("skill.fake")
	if !ok || got.Metadata().ID != "skill.fake" {
		t.Fatalf("resolve failed: ok=%v id=%q", ok, got.Metadata().ID)
	}
}

func TestResolveMissingSkill(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_, ok := r.Resolve("skill.missing")
	if ok {
		t.Fatalf("expected missing skill to return ok=false")
	}
}

func TestListMetadataSorted(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_ = r.Register(fakeSkill{meta: SkillMetadata{ID: "skill.z", Name: "Z", Description: "z"}})
	_ = r.Register(fakeSkill{meta: SkillMetadata{ID: "skill.a", Name: "A", Description: "a"}})
	_ = r.Register(fakeSkill{meta: SkillMetadata{ID: "skill.m", Name: "M", Description: "m"}})

	list := r.ListMetadata()
	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"skill.a", "skill.m", "skill.z"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("metadata not sorted: got=%v want=%v", ids, want)
	}
}

func TestValidateMetadataFailures(t *testing.T) {
	testlog.Start(t)
	cases := []SkillMetadata{
		{ID: "", Name: "Booking", Description: "x"},
		{ID: "skill.booking", Name: "", Description: "x"},
		{ID: "skill.booking", Name: "Booking", Description: ""},
		{ID: "Skill.Booking", Name: "Booking", Description: "x"},
		{ID: ".skill.booking", Name: "Booking", Description: "x"},
		{ID: "skill..booking", Name: "Booking", Description: "x"},
	}
	for _, meta := range cases {
		if err := ValidateMetadata(meta); !errors.Is(err, ErrInvalidMetadata) {
			t.Fatalf("expected ErrInvalidMetadata for meta=%+v, got %v", meta, err)
		}
	}
}

func TestRegisterNilSkill(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Register(nil); !errors.Is(err, ErrSkillNil) {
		t.Fatalf("expected ErrSkillNil, got %v", err)
	}
}

func TestRegisterInvalidMetadataFails(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	s := fakeSkill{meta: SkillMetadata{ID: "Skill.Invalid", Name: "Bad", Description: "bad id format"}}
	if err := r.Register(s); !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("expected ErrInvalidMetadata, got %v", err)
	}
}
