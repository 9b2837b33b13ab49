package shell

import (
	"fmt"
	"strings"

	"github.com/atinyakov/GophMaps/internal/client/saveflow"
)

// saveInput is what the user typed for a save.
type saveInput struct {
	Title       string
	Description string
	Tags        []string
}

// ask shows prompt and returns the trimmed answer; ok is false when input ended or was interrupted.
func (s *Shell) ask(prompt string) (answer string, ok bool) {
	s.rl.SetPrompt(prompt)
	defer s.rl.SetPrompt(s.Prompt())
	line, err := s.rl.Readline()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// promptSave collects the item metadata. A saved map only refreshes its
// content, so the existing title is offered as the default.
func (s *Shell) promptSave(title string) (saveInput, bool) {
	var in saveInput
	if item := s.cfg.Session.Item(); item != nil {
		fmt.Fprintf(s.out, "Map is saved as '%s'; only its content will be updated.\n", item.Title)
		if title == "" {
			title = item.Title
		}
	}

	if title == "" {
		t, ok := s.ask("Title: ")
		if !ok {
			return in, false
		}
		title = t
	}
	in.Title = title

	desc, ok := s.ask("Description: ")
	if !ok {
		return in, false
	}
	in.Description = desc

	tags, ok := s.ask("Tags (comma separated): ")
	if !ok {
		return in, false
	}
	in.Tags = saveflow.ParseTags(tags)
	return in, true
}
