package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind selects how a sandbox workspace is seeded.
type Kind string

const (
	KindEphemeral Kind = "ephemeral-workspace"
	KindRepoCopy  Kind = "full-repository-copy"
)

// OpKind is the kind of operation run inside a sandbox.
type OpKind string

const (
	OpShell     OpKind = "shell-command"
	OpCode      OpKind = "code-execution"
	OpFile      OpKind = "file-operation"
	OpBuildTest OpKind = "build-test" // thin alias of shell-command
)

// OpStatus is the lifecycle state of one operation.
type OpStatus string

const (
	OpRunning   OpStatus = "running"
	OpCompleted OpStatus = "completed"
	OpFailed    OpStatus = "failed"
)

// Status is the lifecycle state of a sandbox.
type Status string

const (
	StatusActive  Status = "active"
	StatusRemoved Status = "removed"
)

const (
	defaultShellTimeout = 60 * time.Second
	defaultCodeTimeout  = 30 * time.Second
	inspectFileCap      = 50
	inspectResultCap    = 10
	cleanupWarnCap      = 5
)

// Operation records one action run inside a sandbox. Records are append-only:
// never mutated once completed, except the Reviewed flag set by inspection.
type Operation struct {
	ID          string    `json:"id"`
	Kind        OpKind    `json:"kind"`
	Description string    `json:"description"`
	Result      string    `json:"result"`
	Status      OpStatus  `json:"status"`
	Reviewed    bool      `json:"reviewed"`
	StartedAt   time.Time `json:"started_at"`
}

// Sandbox is one isolated workspace and its operation history. Operation
// history lives only in process memory for the session's lifetime; the
// workspace directory is the only durable part.
type Sandbox struct {
	Name        string
	Description string
	Kind        Kind
	Path        string // workspace directory
	Status      Status
	Operations  []Operation
}

// Manager owns sandbox lifecycle: create, run, inspect, cleanup. No mutual
// exclusion is provided across processes for a sandbox name; concurrent
// sessions must use distinct names.
type Manager struct {
	repoRoot  string
	baseDir   string
	runner    Runner
	sandboxes map[string]*Sandbox
}

// NewManager creates a manager rooted at the repository. Sandboxes live
// under <repoRoot>/.ai_sandboxes/<name>/workspace.
func NewManager(repoRoot string, runner Runner) *Manager {
	return &Manager{
		repoRoot:  repoRoot,
		baseDir:   filepath.Join(repoRoot, ".ai_sandboxes"),
		runner:    runner,
		sandboxes: make(map[string]*Sandbox),
	}
}

// Create provisions a new sandbox. KindRepoCopy duplicates the working tree
// (minus volatile directories); KindEphemeral starts with an empty workspace.
func (m *Manager) Create(name, description string, kind Kind) (*Sandbox, error) {
	if name == "" {
		return nil, fmt.Errorf("sandbox name is required")
	}
	if strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("sandbox name %q must not contain path separators", name)
	}
	if _, exists := m.sandboxes[name]; exists {
		return nil, fmt.Errorf("sandbox %q already exists", name)
	}
	if kind != KindEphemeral && kind != KindRepoCopy {
		return nil, fmt.Errorf("unknown sandbox kind %q", kind)
	}

	workspace := filepath.Join(m.baseDir, name, "workspace")
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox workspace: %w", err)
	}

	if kind == KindRepoCopy {
		if err := copyRepo(m.repoRoot, workspace); err != nil {
			os.RemoveAll(filepath.Join(m.baseDir, name))
			return nil, fmt.Errorf("failed to copy repository: %w", err)
		}
	}

	sb := &Sandbox{
		Name:        name,
		Description: description,
		Kind:        kind,
		Path:        workspace,
		Status:      StatusActive,
	}
	m.sandboxes[name] = sb
	return sb, nil
}

// Run executes one operation inside a sandbox and appends exactly one
// Operation record. Operation failures are recorded, not returned as errors;
// the error return covers only a missing sandbox or an unknown kind.
func (m *Manager) Run(ctx context.Context, name string, kind OpKind, payload, description string) (Operation, error) {
	sb, err := m.lookup(name)
	if err != nil {
		return Operation{}, err
	}

	op := Operation{
		ID:          fmt.Sprintf("op-%d", len(sb.Operations)+1),
		Kind:        kind,
		Description: description,
		Status:      OpRunning,
		StartedAt:   time.Now().UTC(),
	}

	var result string
	var ok bool
	switch kind {
	case OpShell, OpBuildTest:
		result, ok = m.runShell(ctx, sb, payload)
	case OpCode:
		result, ok = runCode(ctx, payload)
	case OpFile:
		result, ok = runFileOp(sb, payload)
	default:
		return Operation{}, fmt.Errorf("unknown operation kind %q", kind)
	}

	op.Result = result
	if ok {
		op.Status = OpCompleted
	} else {
		op.Status = OpFailed
	}
	sb.Operations = append(sb.Operations, op)
	return op, nil
}

func (m *Manager) runShell(ctx context.Context, sb *Sandbox, command string) (string, bool) {
	res, err := m.runner.RunCmd(ctx, sb.Path, "/bin/sh", []string{"-c", command}, defaultShellTimeout)

	payload := map[string]any{
		"command":   command,
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
		"exit_code": res.Code,
		"timed_out": res.TimedOut,
	}
	if err != nil && res.Stdout == "" && res.Stderr == "" {
		payload["error"] = err.Error()
	}
	out, _ := json.Marshal(payload)
	return string(out), err == nil && res.Code == 0 && !res.TimedOut
}

// runFileOp handles {"op": "create_file"|"read_file", "path": ..., "content": ...},
// confined to the sandbox workspace.
func runFileOp(sb *Sandbox, payload string) (string, bool) {
	var req struct {
		Op      string `json:"op"`
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return fmt.Sprintf(`{"error": "invalid file operation payload: %s"}`, err.Error()), false
	}

	full := filepath.Clean(filepath.Join(sb.Path, req.Path))
	if !strings.HasPrefix(full, filepath.Clean(sb.Path)) {
		return `{"error": "path escapes the sandbox"}`, false
	}

	switch req.Op {
	case "create_file":
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Sprintf(`{"error": %q}`, err.Error()), false
		}
		if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
			return fmt.Sprintf(`{"error": %q}`, err.Error()), false
		}
		out, _ := json.Marshal(map[string]any{"op": "create_file", "path": req.Path, "bytes": len(req.Content)})
		return string(out), true
	case "read_file":
		data, err := os.ReadFile(full)
		if err != nil {
			return fmt.Sprintf(`{"error": %q}`, err.Error()), false
		}
		out, _ := json.Marshal(map[string]any{"op": "read_file", "path": req.Path, "content": string(data)})
		return string(out), true
	default:
		return fmt.Sprintf(`{"error": "unknown file operation %q"}`, req.Op), false
	}
}

// Inspect returns a JSON snapshot of a sandbox. Scope "results" (and "all")
// marks the returned operations as reviewed, which is what the cleanup guard
// keys off.
func (m *Manager) Inspect(name, scope string) (string, error) {
	sb, err := m.lookup(name)
	if err != nil {
		return "", err
	}
	if scope == "" {
		scope = "status"
	}

	snapshot := map[string]any{"name": sb.Name, "scope": scope}

	addStatus := func() {
		snapshot["status"] = sb.Status
		snapshot["kind"] = sb.Kind
		snapshot["description"] = sb.Description
		snapshot["operations"] = len(sb.Operations)
	}
	addFiles := func() {
		var files []string
		truncated := false
		filepath.Walk(sb.Path, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if len(files) >= inspectFileCap {
				truncated = true
				return filepath.SkipAll
			}
			if rel, relErr := filepath.Rel(sb.Path, path); relErr == nil {
				files = append(files, rel)
			}
			return nil
		})
		snapshot["files"] = files
		snapshot["files_truncated"] = truncated
	}
	addLogs := func() {
		var logs []string
		for _, op := range sb.Operations {
			logs = append(logs, fmt.Sprintf("%s [%s] %s: %s", op.ID, op.Status, op.Kind, op.Description))
		}
		snapshot["logs"] = logs
	}
	addResults := func() {
		start := len(sb.Operations) - inspectResultCap
		if start < 0 {
			start = 0
		}
		recent := make([]Operation, 0, len(sb.Operations)-start)
		for i := start; i < len(sb.Operations); i++ {
			sb.Operations[i].Reviewed = true
			recent = append(recent, sb.Operations[i])
		}
		snapshot["results"] = recent
	}

	switch scope {
	case "status":
		addStatus()
	case "files":
		addFiles()
	case "logs":
		addLogs()
	case "results":
		addResults()
	case "all":
		addStatus()
		addFiles()
		addLogs()
		addResults()
	default:
		return "", fmt.Errorf("unknown inspect scope %q", scope)
	}

	out, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Cleanup removes a sandbox. Without force it refuses when completed
// operations were never reviewed, returning a warning that lists them.
func (m *Manager) Cleanup(name string, force bool) (bool, string, error) {
	sb, err := m.lookup(name)
	if err != nil {
		return false, "", err
	}

	if !force {
		var unreviewed []string
		for _, op := range sb.Operations {
			if op.Status == OpCompleted && !op.Reviewed {
				unreviewed = append(unreviewed, fmt.Sprintf("%s: %s", op.ID, op.Description))
			}
		}
		if len(unreviewed) > 0 {
			if len(unreviewed) > cleanupWarnCap {
				unreviewed = unreviewed[len(unreviewed)-cleanupWarnCap:]
			}
			warning := fmt.Sprintf(
				"sandbox %q has %s completed operations that were never inspected: %s. Inspect with scope 'results' first, or pass force=true.",
				name, "unreviewed", strings.Join(unreviewed, "; "))
			return false, warning, nil
		}
	}

	if err := os.RemoveAll(filepath.Join(m.baseDir, name)); err != nil {
		return false, "", fmt.Errorf("failed to remove sandbox directory: %w", err)
	}
	sb.Status = StatusRemoved
	delete(m.sandboxes, name)
	return true, "", nil
}

// Get returns a sandbox by name.
func (m *Manager) Get(name string) (*Sandbox, bool) {
	sb, ok := m.sandboxes[name]
	return sb, ok
}

func (m *Manager) lookup(name string) (*Sandbox, error) {
	sb, ok := m.sandboxes[name]
	if !ok {
		return nil, fmt.Errorf("sandbox %q does not exist", name)
	}
	return sb, nil
}
