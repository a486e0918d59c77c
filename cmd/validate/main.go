package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/jwebster45206/novel-engine/pkg/content"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <story.yaml|story.json>...\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		if err := validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

func validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filepath.Base(filename), ext)
	if !isValidFilename(name) {
		return fmt.Errorf("content filename '%s' must be lowercase snake_case (e.g., my_story.yaml, not my-story.yaml or MyStory.yaml)", filepath.Base(filename))
	}

	table, warnings, err := content.Load(filename)
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if err != nil {
		var integrity *content.IntegrityError
		if errors.As(err, &integrity) {
			return fmt.Errorf("%s has %d problem(s):\n%s", filename, len(integrity.Problems), strings.Join(problemLines(integrity), "\n"))
		}
		return err
	}

	if errs := styleErrors(table); len(errs) > 0 {
		return fmt.Errorf("naming errors in %s:\n%s", filename, strings.Join(errs, "\n"))
	}
	return nil
}

func problemLines(e *content.IntegrityError) []string {
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, "  - "+p.String())
	}
	return lines
}

// styleErrors checks the naming conventions that the engine itself does not
// enforce: scene ids, speaker ids and flag keys are lowercase snake_case.
func styleErrors(t *content.Table) []string {
	var errs []string
	check := func(field, id string) {
		if id != "" && !isValidID(id) {
			errs = append(errs, fmt.Sprintf("  - %s '%s' should be lowercase snake_case", field, id))
		}
	}

	for id := range t.Characters {
		check("character ID", id)
	}
	for sceneID, scene := range t.Scenes {
		check("scene ID", sceneID)
		for _, d := range scene.Dialogues {
			check("speaker in scene "+sceneID, d.Speaker)
		}
		for _, c := range scene.Choices {
			for key := range c.SetFlags {
				check(fmt.Sprintf("flag in scene %s choice %d", sceneID, c.ID), key)
			}
			if c.Condition != nil && c.Condition.Type != content.ConditionPath {
				check(fmt.Sprintf("condition key in scene %s choice %d", sceneID, c.ID), c.Condition.Key)
			}
		}
	}
	slices.Sort(errs)
	return errs
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidFilename(name string) bool {
	// Allow 'x.' prefix for experimental stories
	name = strings.TrimPrefix(name, "x.")
	return validIDRegex.MatchString(name)
}
