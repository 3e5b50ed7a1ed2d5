package model

import "fmt"

// Section identifies one of the mutually exclusive content views. It is a
// closed variant: dispatching on an unknown section is an error, never a
// silent no-op.
type Section string

const (
	SectionPosts    Section = "posts"
	SectionMessages Section = "messages"
	SectionStories  Section = "stories"
	SectionWatch    Section = "watch"
	SectionNovels   Section = "novels"
)

var AllSections = []Section{
	SectionPosts,
	SectionMessages,
	SectionStories,
	SectionWatch,
	SectionNovels,
}

func (s Section) IsValid() bool {
	switch s {
	case SectionPosts, SectionMessages, SectionStories, SectionWatch, SectionNovels:
		return true
	}
	return false
}

func (s Section) String() string {
	return string(s)
}

// ParseSection converts a raw section name coming off the wire into a
// Section, rejecting anything outside the closed set.
func ParseSection(raw string) (Section, error) {
	s := Section(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%s is not a valid section", raw)
	}
	return s, nil
}
