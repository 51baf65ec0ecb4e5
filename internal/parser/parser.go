package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sokinpui/snipsync/model"
)

// Format selects how reply text is decoded.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatJSON, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("unknown reply format '%s' (want auto, json or markdown)", s)
	}
}

var pathInHintRegex = regexp.MustCompile("`([^`\n]+)`")

// ParseReply decodes reply text into a StructuredReply. In auto mode text
// that starts with '{' is read as JSON and anything else as markdown.
func ParseReply(content string, format Format) (model.StructuredReply, error) {
	if format == FormatAuto || format == "" {
		format = FormatMarkdown
		if strings.HasPrefix(strings.TrimSpace(content), "{") {
			format = FormatJSON
		}
	}

	switch format {
	case FormatJSON:
		return parseJSON(content)
	case FormatMarkdown:
		return parseMarkdown(content), nil
	default:
		return model.StructuredReply{}, fmt.Errorf("unknown reply format '%s'", format)
	}
}

func parseJSON(content string) (model.StructuredReply, error) {
	var reply model.StructuredReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return model.StructuredReply{}, fmt.Errorf("failed to decode structured reply: %w", err)
	}
	return reply, nil
}

// parseMarkdown maps code blocks to instructions: a block preceded by a
// backticked path becomes a file creation, a diff block becomes one edit
// per hunk. The remaining prose is the assistant reply.
func parseMarkdown(content string) model.StructuredReply {
	doc := parseDocument([]byte(content))
	reply := model.StructuredReply{
		AssistantReply: strings.Join(doc.Prose, "\n\n"),
	}

	for _, block := range doc.Blocks {
		if block.Lang == "diff" || block.Lang == "patch" {
			creations, edits := instructionsFromDiff(block.Content, pathFromHint(block.Hint))
			reply.FilesToCreate = append(reply.FilesToCreate, creations...)
			reply.FilesToEdit = append(reply.FilesToEdit, edits...)
			continue
		}

		path := pathFromHint(block.Hint)
		if path == "" {
			continue
		}
		reply.FilesToCreate = append(reply.FilesToCreate, model.FileCreation{
			Path:    path,
			Content: block.Content,
		})
	}
	return reply
}

// pathFromHint extracts a backticked path from a hint paragraph, such as
// "Update `internal/app.go`:".
func pathFromHint(hint string) string {
	for _, match := range pathInHintRegex.FindAllStringSubmatch(hint, -1) {
		path := strings.TrimSpace(match[1])
		// Disallow spaces to avoid capturing commands like `go run main.go` as a path.
		if path != "" && !strings.Contains(path, " ") {
			return path
		}
	}
	return ""
}
