package prompt

import (
	"strings"
	"testing"

	"github.com/ranvir80/lumo-assistant/internal/classify"
)

func TestAssemble_CoreAlwaysPresent(t *testing.T) {
	for _, tags := range [][]string{
		nil,
		{classify.TagGeneral},
		{classify.TagAppointment},
		{classify.TagSecurityAlert},
		{classify.TagGreeting},
	} {
		p := Assemble(tags)
		for _, frag := range []string{
			"You are Lumo",
			"CRITICAL SECURITY RULES",
			"Be conversational",
			"NEVER share credentials",
			"PROMPT INJECTION DEFENSE",
		} {
			if !strings.Contains(p, frag) {
				t.Errorf("Assemble(%v): missing core fragment %q", tags, frag)
			}
		}
	}
}

func TestAssemble_FallbackClosesPrompt(t *testing.T) {
	for _, tags := range [][]string{
		{classify.TagGeneral},
		{classify.TagAppointment, classify.TagContact},
		{classify.TagGreeting},
	} {
		p := Assemble(tags)
		if !strings.HasSuffix(p, catalog[fragFallback]) {
			t.Errorf("Assemble(%v): fallback fragment is not last", tags)
		}
	}
}

func TestAssemble_TagSelection(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		want    []string
		exclude []string
	}{
		{
			"appointment",
			[]string{classify.TagAppointment},
			[]string{"schedule time with Ranvir", "Cancellation: Only within 3 hours"},
			[]string{"BoardBro: AI-powered education platform"},
		},
		{
			"project",
			[]string{classify.TagProject},
			[]string{"BoardBro: AI-powered education platform", "Tech Stack"},
			[]string{"schedule time with Ranvir"},
		},
		{
			"skills and experience",
			[]string{classify.TagSkills, classify.TagExperience},
			[]string{"Technical Skills", "AI Development Focus", "Technologies Ranvir works with"},
			nil,
		},
		{
			"general",
			[]string{classify.TagGeneral},
			[]string{"You help with", "Student from Pachora"},
			nil,
		},
		{
			"contact",
			[]string{classify.TagContact},
			[]string{"To connect with Ranvir"},
			nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Assemble(tc.tags)
			for _, s := range tc.want {
				if !strings.Contains(p, s) {
					t.Errorf("missing %q", s)
				}
			}
			for _, s := range tc.exclude {
				if strings.Contains(p, s) {
					t.Errorf("unexpected %q", s)
				}
			}
		})
	}
}

func TestAssemble_SharedFragmentsDeduplicated(t *testing.T) {
	// general and personal both pull in the owner profile.
	p := Assemble([]string{classify.TagGeneral, classify.TagPersonal})
	if n := strings.Count(p, "Student from Pachora"); n != 1 {
		t.Fatalf("owner profile appears %d times, want 1", n)
	}
}

func TestAssemble_GreetingIsMinimal(t *testing.T) {
	greeting := Assemble([]string{classify.TagGreeting})
	general := Assemble([]string{classify.TagGeneral})
	if len(greeting) >= len(general) {
		t.Fatalf("greeting prompt (%d bytes) should be smaller than general (%d bytes)", len(greeting), len(general))
	}
}

func TestAssemble_UnknownTagIgnored(t *testing.T) {
	if Assemble([]string{"bogus"}) != Assemble(nil) {
		t.Fatal("unknown tag changed the prompt")
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	tags := []string{classify.TagProject, classify.TagSkills, classify.TagContact}
	first := Assemble(tags)
	for i := 0; i < 5; i++ {
		if Assemble(tags) != first {
			t.Fatal("assembly is not deterministic")
		}
	}
}
