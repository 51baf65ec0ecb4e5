package parser

import (
	"regexp"
	"strings"

	"github.com/sokinpui/snipsync/model"
)

var (
	// newPathRegex extracts the file path from a '+++ b/...' line.
	newPathRegex = regexp.MustCompile(`(?m)^\+\+\+ (?:b/)?(\S+)`)
	// oldPathRegex matches the '--- ...' line, to spot new files.
	oldPathRegex = regexp.MustCompile(`(?m)^--- (\S+)`)
)

// ExtractPathFromDiff finds the target file path in a raw diff string.
func ExtractPathFromDiff(content string) string {
	if match := newPathRegex.FindStringSubmatch(content); len(match) > 1 && match[1] != "/dev/null" {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// instructionsFromDiff turns a unified diff into snippet edits. Line numbers
// in hunk headers are ignored: each hunk's context and removed lines form
// the original snippet, which is located in the file like any other edit.
// A file diffed from /dev/null becomes a file creation. hintPath is used
// when the diff carries no '+++' header.
func instructionsFromDiff(raw, hintPath string) ([]model.FileCreation, []model.FileEdit) {
	lines := strings.Split(strings.TrimSuffix(strings.ReplaceAll(raw, "\r\n", "\n"), "\n"), "\n")

	var creations []model.FileCreation
	var edits []model.FileEdit
	for _, file := range splitDiffFiles(lines) {
		section := strings.Join(file, "\n")
		path := ExtractPathFromDiff(section)
		if path == "" {
			path = hintPath
		}
		if path == "" {
			continue
		}

		hunks := parseDiffToHunks(file)
		if match := oldPathRegex.FindStringSubmatch(section); len(match) > 1 && match[1] == "/dev/null" {
			var content []string
			for _, hunk := range hunks {
				content = append(content, newSide(hunk)...)
			}
			creation := model.FileCreation{Path: path}
			if len(content) > 0 {
				creation.Content = strings.Join(content, "\n") + "\n"
			}
			creations = append(creations, creation)
			continue
		}

		for _, hunk := range hunks {
			edits = append(edits, model.FileEdit{
				Path:            path,
				OriginalSnippet: strings.Join(oldSide(hunk), "\n"),
				NewSnippet:      strings.Join(newSide(hunk), "\n"),
			})
		}
	}
	return creations, edits
}

// splitDiffFiles cuts a multi-file diff at each '--- '/'+++ ' header pair.
func splitDiffFiles(lines []string) [][]string {
	var files [][]string
	var current []string
	seenTarget := false

	for i, line := range lines {
		isHeader := strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ")
		if isHeader && seenTarget {
			files = append(files, current)
			current = nil
			seenTarget = false
		}
		if strings.HasPrefix(line, "+++ ") {
			seenTarget = true
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		files = append(files, current)
	}
	return files
}

// parseDiffToHunks splits diff lines into hunks of prefixed lines. A diff
// without '@@' headers is one hunk starting after the '+++' line. An empty
// line inside a hunk is an empty context line, which is how many models
// emit them.
func parseDiffToHunks(diffLines []string) [][]string {
	var hunks [][]string
	var currentHunk []string
	inHunk := false

	flush := func() {
		if len(currentHunk) > 0 {
			hunks = append(hunks, currentHunk)
		}
		currentHunk = nil
	}

	for i, line := range diffLines {
		isHeader := strings.HasPrefix(line, "--- ") && i+1 < len(diffLines) && strings.HasPrefix(diffLines[i+1], "+++ ")
		switch {
		case isHeader:
			flush()
			inHunk = false
		case strings.HasPrefix(line, "+++ ") && !inHunk:
			inHunk = true
		case strings.HasPrefix(line, "@@"):
			flush()
			inHunk = true
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file"
		case !inHunk:
			// diff/index headers
		case line == "":
			currentHunk = append(currentHunk, " ")
		case strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, " "):
			currentHunk = append(currentHunk, line)
		}
	}
	flush()
	return hunks
}

// oldSide returns the lines guaranteed to be in the original file: context
// and removed lines.
func oldSide(hunk []string) []string {
	var side []string
	for _, line := range hunk {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "-") {
			side = append(side, line[1:])
		}
	}
	return side
}

func newSide(hunk []string) []string {
	var side []string
	for _, line := range hunk {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "+") {
			side = append(side, line[1:])
		}
	}
	return side
}
