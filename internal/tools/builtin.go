// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/loom-tui/internal/model"
)

// MaxToolOutput caps tool output handed back to the model.
const MaxToolOutput = 30000

var errPathEscapesRoot = errors.New("path escapes the working directory")

// RegisterBuiltins registers the built-in tools rooted at workDir.
func (r *Registry) RegisterBuiltins(workDir string) {
	r.Register(ReadFileTool(workDir))
	r.Register(ListDirTool(workDir))
	r.Register(CurrentTimeTool())
}

// resolvePath joins a relative path against the work dir, rejecting
// traversal outside it.
func resolvePath(workDir, rel string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(workDir, rel))
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", errPathEscapesRoot
	}
	return abs, nil
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, name string) (string, error) {
	val, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("argument %q: expected string", name)
	}
	return s, nil
}

// =============================================================================
// READ FILE
// =============================================================================

// ReadFileTool reads a text file relative to the working directory.
func ReadFileTool(workDir string) *Tool {
	return &Tool{
		Name:        "read_file",
		Description: "Read a text file and return its contents.",
		Parameters: ObjectParameters(map[string]Property{
			"path": {Type: "string", Description: "File path relative to the working directory"},
		}, "path"),
		Executor: ExecutorFunc(func(ctx context.Context, args map[string]any, _ []*model.Message) (any, error) {
			rel, err := stringArg(args, "path")
			if err != nil {
				return nil, err
			}
			path, err := resolvePath(workDir, rel)
			if err != nil {
				return nil, err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}

			content := string(data)
			truncated := false
			if len(content) > MaxToolOutput {
				content = content[:MaxToolOutput]
				truncated = true
			}
			return map[string]any{
				"path":      rel,
				"content":   content,
				"truncated": truncated,
			}, nil
		}),
	}
}

// =============================================================================
// LIST DIRECTORY
// =============================================================================

// ListDirTool lists directory entries relative to the working directory.
func ListDirTool(workDir string) *Tool {
	return &Tool{
		Name:        "list_dir",
		Description: "List the entries of a directory.",
		Parameters: ObjectParameters(map[string]Property{
			"path": {Type: "string", Description: "Directory path relative to the working directory"},
		}, "path"),
		Executor: ExecutorFunc(func(ctx context.Context, args map[string]any, _ []*model.Message) (any, error) {
			rel, err := stringArg(args, "path")
			if err != nil {
				return nil, err
			}
			path, err := resolvePath(workDir, rel)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
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
			return map[string]any{"path": rel, "entries": names}, nil
		}),
	}
}

// =============================================================================
// CURRENT TIME
// =============================================================================

// CurrentTimeTool reports the local time; models have no clock of their own.
func CurrentTimeTool() *Tool {
	return &Tool{
		Name:        "current_time",
		Description: "Get the current local date and time.",
		Parameters:  ObjectParameters(map[string]Property{}),
		Executor: ExecutorFunc(func(ctx context.Context, _ map[string]any, _ []*model.Message) (any, error) {
			now := time.Now()
			return map[string]any{
				"iso":  now.Format(time.RFC3339),
				"unix": now.Unix(),
			}, nil
		}),
	}
}
