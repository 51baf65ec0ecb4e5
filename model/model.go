package model

// StructuredReply is one parsed model turn: the text shown to the user
// plus the file instructions that come with it.
type StructuredReply struct {
	AssistantReply string         `json:"assistant_reply"`
	FilesToCreate  []FileCreation `json:"files_to_create"`
	FilesToEdit    []FileEdit     `json:"files_to_edit"`
}

// FileCreation writes Content to Path, replacing any existing file.
type FileCreation struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// FileEdit replaces the single occurrence of OriginalSnippet in an
// existing file with NewSnippet.
type FileEdit struct {
	Path            string `json:"path"`
	OriginalSnippet string `json:"original_snippet"`
	NewSnippet      string `json:"new_snippet"`
}

// OutcomeKind tells what happened to one instruction.
type OutcomeKind string

const (
	Created OutcomeKind = "created"
	Edited  OutcomeKind = "edited"
	Failed  OutcomeKind = "failed"
	// Removed is reported when undoing a creation deletes the file.
	Removed OutcomeKind = "removed"
)

// EditOutcome is the result of applying one FileCreation or FileEdit.
type EditOutcome struct {
	Path   string      `json:"path"`
	Kind   OutcomeKind `json:"kind"`
	Err    ErrorKind   `json:"error,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Operation names what produced a Summary.
type Operation string

const (
	OpApply Operation = "apply"
	OpUndo  Operation = "undo"
	OpRedo  Operation = "redo"
)

// Summary holds the results of an operation for display.
type Summary struct {
	Operation Operation     `json:"operation"`
	Message   string        `json:"message,omitempty"`
	Outcomes  []EditOutcome `json:"outcomes"`
}

// Created returns the paths of created files, in order.
func (s Summary) Created() []string { return s.pathsOf(Created) }

// Edited returns the paths of edited files, in order.
func (s Summary) Edited() []string { return s.pathsOf(Edited) }

// Removed returns the paths of removed files, in order.
func (s Summary) Removed() []string { return s.pathsOf(Removed) }

// Failed returns the failed outcomes, in order.
func (s Summary) Failed() []EditOutcome {
	var failed []EditOutcome
	for _, o := range s.Outcomes {
		if o.Kind == Failed {
			failed = append(failed, o)
		}
	}
	return failed
}

func (s Summary) pathsOf(kind OutcomeKind) []string {
	var paths []string
	for _, o := range s.Outcomes {
		if o.Kind == kind {
			paths = append(paths, o.Path)
		}
	}
	return paths
}
