package chain

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/chainval/internal/apperr"
)

const sample = `# Spring release chain
[global]
version=2.0.0
version.binary=20000
description=Spring release
recipients=a@example.com, b@example.com

[global.devs]
devs.version=2.1.0-SNAPSHOT
devs.version.binary=20100

[core]
mode=tag
tag = v20000
fork=git@example.com:org/core.git
tests.unit=true

#[legacy]
# kept for reference
#mode=branch
#branch=develop

[web]
mode=branch
branch=main
tests.unit=yes
`

func TestParse_Structure(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := m.Global.BinaryVersion(); got != "20000" {
		t.Errorf("binary version = %q, want %q", got, "20000")
	}
	if got := m.Global.DevBinaryVersion(); got != "20100" {
		t.Errorf("dev binary version = %q, want %q", got, "20100")
	}
	if got := m.Global.Recipients(); len(got) != 2 || got[1] != "b@example.com" {
		t.Errorf("recipients = %v", got)
	}
	if len(m.Sections) != 3 {
		t.Fatalf("len(sections) = %d, want 3", len(m.Sections))
	}
	core := m.Section("core")
	if core == nil || core.Tag() != "v20000" || core.Mode() != "tag" {
		t.Fatalf("core = %+v", core)
	}
	if !core.TestsUnit() {
		t.Error("core tests.unit should be true")
	}
	legacy := m.Section("legacy")
	if legacy == nil || !legacy.Commented || legacy.Branch() != "develop" {
		t.Fatalf("legacy = %+v", legacy)
	}
	if m.Section("web").TestsUnit() {
		t.Error("unparsable tests.unit should read as false")
	}
	if n := len(m.ActiveSections()); n != 2 {
		t.Errorf("active sections = %d, want 2", n)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := string(m.Bytes()); got != sample {
		t.Errorf("round trip mismatch:\n%s", got)
	}
}

func TestParse_RoundTripCRLF(t *testing.T) {
	in := "[global]\r\nversion.binary=1\r\n\r\n[a]\r\ntag=v1\r\n"
	m, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := string(m.Bytes()); got != in {
		t.Errorf("round trip = %q, want %q", got, in)
	}
}

func TestWrite_MutationTouchesOnlyChangedLines(t *testing.T) {
	m, _ := Parse([]byte(sample))
	m.Section("core").Props.Set(KeyTag, "v20500")
	m.Global.Props.Set(KeyBinaryVersion, "20500")

	got := string(m.Bytes())
	want := strings.Replace(sample, "tag = v20000", "tag=v20500", 1)
	want = strings.Replace(want, "version.binary=20000", "version.binary=20500", 1)
	if got != want {
		t.Errorf("unexpected output:\n%s", got)
	}
}

func TestWrite_AppendAndDelete(t *testing.T) {
	in := "[a]\nmode=tag\ntag=v1\n\n[b]\nmode=branch\n"
	m, _ := Parse([]byte(in))
	m.Section("a").Props.Delete(KeyTag)
	m.Section("a").Props.Set(KeyBranch, "main")

	want := "[a]\nmode=tag\nbranch=main\n\n[b]\nmode=branch\n"
	if got := string(m.Bytes()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrite_AppendKeepsCommentBeforeNextHeader(t *testing.T) {
	in := "[core]\nmode=tag\n\n# UI project, owned by web team\n[ui]\nmode=branch\nbranch=main\n"
	m, _ := Parse([]byte(in))
	m.Section("core").Props.Set(KeyBranch, "master")

	want := "[core]\nmode=tag\nbranch=master\n\n# UI project, owned by web team\n[ui]\nmode=branch\nbranch=main\n"
	if got := string(m.Bytes()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrite_AppendToEmptySection(t *testing.T) {
	in := "[core]\n# nothing yet\n\n[ui]\nmode=tag\n"
	m, _ := Parse([]byte(in))
	m.Section("core").Props.Set(KeyMode, "branch")

	want := "[core]\nmode=branch\n# nothing yet\n\n[ui]\nmode=tag\n"
	if got := string(m.Bytes()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrite_DevsKeysGoToDevsBlock(t *testing.T) {
	in := "[global]\nversion.binary=20000\n\n[global.devs]\ndevs.version=2.1.0\n\n[core]\nmode=tag\n"
	m, _ := Parse([]byte(in))
	m.Global.Props.Set(KeyDevBinaryVersion, "20100")
	m.Global.Props.Set(KeyIssueID, "REL-1")

	want := "[global]\nversion.binary=20000\nissue.id=REL-1\n\n[global.devs]\ndevs.version=2.1.0\ndevs.version.binary=20100\n\n[core]\nmode=tag\n"
	if got := string(m.Bytes()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Without a devs block every new global key lands in [global].
	m, _ = Parse([]byte("[global]\nversion.binary=20000\n"))
	m.Global.Props.Set(KeyDevBinaryVersion, "20100")
	if got, want := string(m.Bytes()), "[global]\nversion.binary=20000\ndevs.version.binary=20100\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrite_CommentedSectionKeepsPrefix(t *testing.T) {
	in := "#[old]\n#mode=branch\n"
	m, _ := Parse([]byte(in))
	m.Section("old").Props.Set(KeyMode, "tag")
	want := "#[old]\n#mode=tag\n"
	if got := string(m.Bytes()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrite_Canonical(t *testing.T) {
	m := New(NewSection("a", KeyTag, "v1"))
	m.Global.Props.Set(KeyBinaryVersion, "1")
	want := "[global]\nversion.binary=1\n\n[a]\ntag=v1\n"
	if got := string(m.Bytes()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWrite_AddedSectionAppended(t *testing.T) {
	m, _ := Parse([]byte("[a]\ntag=v1\n"))
	m.AddSection(NewSection("b", KeyMode, "tag"))
	want := "[a]\ntag=v1\n\n[b]\nmode=tag\n"
	if got := string(m.Bytes()); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"property before header", "mode=tag\n[a]\n"},
		{"malformed line", "[a]\njust words\n"},
		{"active line in commented section", "#[a]\nmode=tag\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestParse_DuplicateSectionsTolerated(t *testing.T) {
	m, err := Parse([]byte("[a]\ntag=v1\n[a]\ntag=v2\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n := len(m.SectionsNamed("a")); n != 2 {
		t.Errorf("sections named a = %d, want 2", n)
	}
}

func TestProperties_SetDelete(t *testing.T) {
	p := NewProperties("a", "1")
	if p.Set("a", "1") {
		t.Error("setting the same value should report no change")
	}
	if !p.Set("b", " ") || p.IsSet("b") || !p.Has("b") {
		t.Error("blank value should be present but not set")
	}
	if !p.Delete("a") || p.Delete("a") {
		t.Error("delete should report presence once")
	}
	if keys := p.Keys(); len(keys) != 1 || keys[0] != "b" {
		t.Errorf("keys = %v", keys)
	}
	var nilProps *Properties
	if nilProps.Get("x") != "" || nilProps.Len() != 0 {
		t.Error("nil properties should read as empty")
	}
}
