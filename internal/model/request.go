package model

import (
	"slices"
	"strings"
	"time"
)

type RequestType string

const (
	RequestAnalyze RequestType = "analyze"
	RequestCompare RequestType = "compare"
)

type SubjectType string

const (
	SubjectDir       SubjectType = "dir"
	SubjectFile      SubjectType = "file"
	SubjectWorkspace SubjectType = "workspace"
	SubjectLink      SubjectType = "link" // alias of workspace
)

// Subject is a filesystem path or a workspace a single invocation acts upon.
type Subject struct {
	Type SubjectType `json:"type" yaml:"type"`
	Path string      `json:"path" yaml:"path"`
}

// Request is a declarative scan request translated by the parser.
type Request struct {
	Type   RequestType
	Config RequestConfig
}

type RequestConfig struct {
	Mode           []string
	Subjects       []Subject
	OutputFormat   string
	OutputPath     string
	OutputFileName string
}

const (
	// ModeCompare is the mode token of a comparison batch.
	ModeCompare = "compare"
	// NoSubject is a path subject meaning no explicit subject: the scanner
	// runs over the current working directory.
	NoSubject = "undefined"
)

// Batch describes all invocations derived from one request. Flags are
// appended to every invocation.
type Batch struct {
	Mode       []string
	Paths      []string
	Workspaces []string
	Flags      []string
}

// IsCompare reports whether all paths are merged into a single invocation.
func (b Batch) IsCompare() bool {
	return strings.Join(b.Mode, " ") == ModeCompare
}

const (
	SelectorPath      = "-p"
	SelectorWorkspace = "-w"
)

// Invocation is one command line of the scanner.
type Invocation struct {
	Mode     []string
	Selector string // SelectorPath or SelectorWorkspace
	Subject  []string
	Flags    []string
}

// Args returns the argument vector passed to the scanner binary.
func (i Invocation) Args() []string {
	args := make([]string, 0, len(i.Mode)+1+len(i.Subject)+len(i.Flags))
	args = append(args, i.Mode...)
	args = append(args, i.Selector)
	args = append(args, i.Subject...)
	return append(args, i.Flags...)
}

// Path is the subject the invocation acts upon, used for bookkeeping.
func (i Invocation) Path() string {
	return strings.Join(i.Subject, " ")
}

func (i Invocation) String() string {
	return strings.Join(i.Args(), " ")
}

func (i Invocation) Equal(o Invocation) bool {
	return i.Selector == o.Selector &&
		slices.Equal(i.Mode, o.Mode) &&
		slices.Equal(i.Subject, o.Subject) &&
		slices.Equal(i.Flags, o.Flags)
}

// Result is an aggregate outcome of a batch. Data holds the paths of
// invocations which succeeded, in order, even when a later one failed.
type Result struct {
	RunID   string    `json:"run_id,omitempty"`
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    []string  `json:"data"`
	Started time.Time `json:"started,omitzero"`
	Stopped time.Time `json:"stopped,omitzero"`
}
