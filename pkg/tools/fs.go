// TinyClaw - Ultra-lightweight personal AI agent
// License: MIT

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pathGuard confines file tools to the workspace when restriction is on.
type pathGuard struct {
	workspace string
	restrict  bool
}

func (g pathGuard) resolve(raw string) (string, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(g.workspace, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if g.restrict {
		wsAbs, err := filepath.Abs(g.workspace)
		if err != nil {
			return "", fmt.Errorf("resolving workspace: %w", err)
		}
		rel, err := filepath.Rel(wsAbs, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path %q is outside the workspace", raw)
		}
	}

	return abs, nil
}

const maxReadBytes = 100 * 1024

type ReadFileTool struct {
	guard pathGuard
}

func NewReadFileTool(workspace string, restrict bool) *ReadFileTool {
	return &ReadFileTool{guard: pathGuard{workspace: workspace, restrict: restrict}}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Relative paths resolve inside the workspace."
}

func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	raw, _ := args["path"].(string)
	path, err := t.guard.resolve(raw)
	if err != nil {
		return ErrorResult(err.Error())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("reading %s: %v", raw, err))
	}

	content := string(data)
	if len(content) > maxReadBytes {
		content = content[:maxReadBytes] + fmt.Sprintf("\n... (truncated, %d more bytes)", len(data)-maxReadBytes)
	}
	return SilentResult(content)
}

type WriteFileTool struct {
	guard pathGuard
}

func NewWriteFileTool(workspace string, restrict bool) *WriteFileTool {
	return &WriteFileTool{guard: pathGuard{workspace: workspace, restrict: restrict}}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Write content to a file, creating parent directories as needed. Overwrites existing content."
}

func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the file to write",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Content to write",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	raw, _ := args["path"].(string)
	content, ok := args["content"].(string)
	if !ok {
		return ErrorResult("content is required")
	}

	path, err := t.guard.resolve(raw)
	if err != nil {
		return ErrorResult(err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ErrorResult(fmt.Sprintf("creating directories for %s: %v", raw, err))
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return ErrorResult(fmt.Sprintf("writing %s: %v", raw, err))
	}

	return SilentResult(fmt.Sprintf("Wrote %d bytes to %s", len(content), raw))
}

type EditFileTool struct {
	guard pathGuard
}

func NewEditFileTool(workspace string, restrict bool) *EditFileTool {
	return &EditFileTool{guard: pathGuard{workspace: workspace, restrict: restrict}}
}

func (t *EditFileTool) Name() string { return "edit_file" }

func (t *EditFileTool) Description() string {
	return "Replace an exact text fragment in a file. The old text must appear exactly once."
}

func (t *EditFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path of the file to edit",
			},
			"old_text": map[string]interface{}{
				"type":        "string",
				"description": "Exact text to replace",
			},
			"new_text": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text",
			},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	raw, _ := args["path"].(string)
	oldText, ok := args["old_text"].(string)
	if !ok || oldText == "" {
		return ErrorResult("old_text is required")
	}
	newText, ok := args["new_text"].(string)
	if !ok {
		return ErrorResult("new_text is required")
	}

	path, err := t.guard.resolve(raw)
	if err != nil {
		return ErrorResult(err.Error())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("reading %s: %v", raw, err))
	}

	content := string(data)
	count := strings.Count(content, oldText)
	if count == 0 {
		return ErrorResult(fmt.Sprintf("old_text not found in %s", raw))
	}
	if count > 1 {
		return ErrorResult(fmt.Sprintf("old_text appears %d times in %s, must be unique", count, raw))
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return ErrorResult(fmt.Sprintf("writing %s: %v", raw, err))
	}

	return SilentResult(fmt.Sprintf("Edited %s", raw))
}

type ListDirTool struct {
	guard pathGuard
}

func NewListDirTool(workspace string, restrict bool) *ListDirTool {
	return &ListDirTool{guard: pathGuard{workspace: workspace, restrict: restrict}}
}

func (t *ListDirTool) Name() string { return "list_dir" }

func (t *ListDirTool) Description() string {
	return "List the entries of a directory. Defaults to the workspace root."
}

func (t *ListDirTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list (optional, defaults to workspace)",
			},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	raw, _ := args["path"].(string)
	if strings.TrimSpace(raw) == "" {
		raw = "."
	}

	path, err := t.guard.resolve(raw)
	if err != nil {
		return ErrorResult(err.Error())
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("listing %s: %v", raw, err))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return SilentResult("(empty directory)")
	}
	return SilentResult(strings.Join(names, "\n"))
}
