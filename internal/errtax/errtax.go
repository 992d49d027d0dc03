// Package errtax is loom's error taxonomy. It replaces the teacher's
// plain fmt.Errorf chains with a small set of tagged leaf errors (one
// per spec.md §7 kind) plus breadcrumb wrappers that the top-level
// formatter in link.go partitions into backtrace/contexts/errors
// sections when printing a failure to the user.
package errtax

import "fmt"

// Kind tags a leaf error with the taxonomy entry it belongs to.
type Kind string

const (
	// Parse/validation
	KindBadManifest      Kind = "BadManifest"
	KindUnknownVarKind   Kind = "UnknownVarKind"
	KindUnknownVarType   Kind = "UnknownVarType"
	KindWrongVarType     Kind = "WrongVarType"
	KindBadVar           Kind = "BadVar"
	KindBadFsVar         Kind = "BadFsVar"
	KindBadExtraVar      Kind = "BadExtraVar"
	KindBadKindArg       Kind = "BadKindArg"
	KindBadKindArgRender Kind = "BadKindArgRender"

	// Binding
	KindBadTaskline      Kind = "BadTaskline"
	KindBadTaskInTaskset Kind = "BadTaskInTaskset"
	KindUseVars          Kind = "UseVars"
	KindUseTasklines     Kind = "UseTasklines"
	KindNoItemsVar       Kind = "NoItemsVar"
	KindNoFsVar          Kind = "NoFsVar"
	KindNoEngine         Kind = "NoEngine"
	KindNoWorkers        Kind = "NoWorkers"
	KindNoWorkersForTask Kind = "NoWorkersForTask"
	KindEnsureAbsentVars Kind = "EnsureAbsentVars"

	// Runtime
	KindGetSrcFilename              Kind = "GetSrcFilename"
	KindNoArgument                  Kind = "NoArgument"
	KindWrongArgumentType           Kind = "WrongArgumentType"
	KindWrongItemsVarType           Kind = "WrongItemsVarType"
	KindWrongValueType              Kind = "WrongValueType"
	KindChildStdin                  Kind = "ChildStdin"
	KindTSort                       Kind = "TSort"
	KindCommandFailedExitCode       Kind = "CommandFailedExitCode"
	KindCommandFailedSuccessMatches Kind = "CommandFailedSuccessMatches"
	KindCommandFailedFailureMatches Kind = "CommandFailedFailureMatches"
	KindUnsupportedSpecialTask      Kind = "UnsupportedSpecialTask"
	KindWorkerSetupFailed           Kind = "WorkerSetupFailed"
	KindInitManifestExists          Kind = "InitManifestExists"
	KindBadInitProfile              Kind = "BadInitProfile"

	// User-signalled
	KindUser Kind = "User"
)

// Error is a leaf error tagged with its taxonomy Kind. It never wraps
// another error directly — breadcrumbs and context bags wrap an Error
// (see link.go) rather than the other way around.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func BadManifest(path string) *Error {
	return newErr(KindBadManifest, "bad path to manifest `%s`", path)
}

func UnknownVarKind(kind string) *Error {
	return newErr(KindUnknownVarKind, "unknown variable kind `%s`", kind)
}

func UnknownVarType(typ string) *Error {
	return newErr(KindUnknownVarType, "unknown variable type `%s`", typ)
}

func WrongVarType(name, typ string) *Error {
	return newErr(KindWrongVarType, "variable `%s` must be of type `%s`", name, typ)
}

func BadVar(raw string) *Error {
	return newErr(KindBadVar, "could not parse variable `%s`", raw)
}

func BadFsVar(name string) *Error {
	return newErr(KindBadFsVar, "fs var name should be alphanumeric, but get `%s`", name)
}

func BadExtraVar(raw string) *Error {
	return newErr(KindBadExtraVar, "extra var `%s` does not have '=' to delimit name", raw)
}

func BadKindArg(raw string) *Error {
	return newErr(KindBadKindArg, "kind argument `%s` does not have ':' to delimit name", raw)
}

func BadKindArgRender(value string) *Error {
	return newErr(KindBadKindArgRender, "kind argument `render` must be true or false, but get `%s`", value)
}

func BadTaskline(name, file string) *Error {
	return newErr(KindBadTaskline, "failed to get taskline `%s` from file `%s`", name, file)
}

func BadTaskInTaskset(name string) *Error {
	return newErr(KindBadTaskInTaskset, "failed to get task `%s` from taskset", name)
}

func UseVars(names, file string) *Error {
	return newErr(KindUseVars, "cannot use vars `%s` from the `%s`", names, file)
}

func UseTasklines(names, file string) *Error {
	return newErr(KindUseTasklines, "cannot use tasklines `%s` from the `%s`", names, file)
}

func NoItemsVar(name string) *Error {
	return newErr(KindNoItemsVar, "items variable `%s` is not set", name)
}

func NoFsVar(name string) *Error {
	return newErr(KindNoFsVar, "fs variable `%s` does not exist", name)
}

func NoEngine(worker string) *Error {
	return newErr(KindNoEngine, "no engine provided to worker `%s`", worker)
}

func NoWorkers() *Error {
	return newErr(KindNoWorkers, "workers should be set")
}

func NoWorkersForTask(task string) *Error {
	return newErr(KindNoWorkersForTask, "no worker matches task `%s`", task)
}

func EnsureAbsentVars(names, taskline string) *Error {
	return newErr(KindEnsureAbsentVars, "variables `%s` are not set for taskline `%s`", names, taskline)
}

func GetSrcFilename(path string) *Error {
	return newErr(KindGetSrcFilename, "get task's src `%s` has no filename", path)
}

func NoArgument(name string) *Error {
	return newErr(KindNoArgument, "required argument `%s` is not set", name)
}

func WrongArgumentType(name string) *Error {
	return newErr(KindWrongArgumentType, "argument `%s` has wrong type", name)
}

func WrongItemsVarType(name string) *Error {
	return newErr(KindWrongItemsVarType, "items variable `%s` has wrong type", name)
}

func WrongValueType() *Error {
	return newErr(KindWrongValueType, "value has wrong type")
}

func ChildStdin() *Error {
	return newErr(KindChildStdin, "child process stdin has not been captured")
}

func TSort(where string) *Error {
	return newErr(KindTSort, "failed tsort in %s", where)
}

func CommandFailedExitCode(cmd string) *Error {
	return newErr(KindCommandFailedExitCode, "command `%s` failed: return failure exit code", cmd)
}

func CommandFailedSuccessMatches(cmd string) *Error {
	return newErr(KindCommandFailedSuccessMatches, "command `%s` failed: don't match success matches", cmd)
}

func CommandFailedFailureMatches(cmd string) *Error {
	return newErr(KindCommandFailedFailureMatches, "command `%s` failed: match failure matches", cmd)
}

func UnsupportedSpecialTask(name string) *Error {
	return newErr(KindUnsupportedSpecialTask, "special task `%s` does not work on this engine", name)
}

func WorkerSetupFailed(worker string) *Error {
	return newErr(KindWorkerSetupFailed, "failed to setup worker `%s`", worker)
}

func InitManifestExists(path string) *Error {
	return newErr(KindInitManifestExists, "init target `%s` already exists", path)
}

func BadInitProfile(profile string) *Error {
	return newErr(KindBadInitProfile, "bad init profile `%s`", profile)
}

// UserErr is the `Error` task's user-signalled failure: `User(msg, code,
// trace)`. Trace controls whether the runner prints the backtrace/context
// sections in addition to the message (spec §4.6).
type UserErr struct {
	Msg   string
	Code  int
	Trace bool
}

func User(msg string, code int, trace bool) *UserErr {
	return &UserErr{Msg: msg, Code: code, Trace: trace}
}

func (e *UserErr) Error() string { return e.Msg }

// ExitCode returns the process exit code a User error should produce.
func (e *UserErr) ExitCode() int { return e.Code }
