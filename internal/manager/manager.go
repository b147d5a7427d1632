// Package manager declares the interface a build execution engine uses
// to report progress and register per-build cancellation, per spec.md
// §6 and §9.
package manager

import "context"

// Manager is implemented by whatever owns the connection back to the
// toxicmaster side. The build engine never touches a socket directly;
// it only ever talks to this interface, the same separation of concerns
// as the teacher pack's Engine interface in spindle/models/engine.go.
type Manager interface {
	// SendInfo delivers one protocol message (*protocol.BuildInfo,
	// protocol.StepInfo or protocol.StepOutputInfo) to whatever is
	// listening for build progress.
	SendInfo(ctx context.Context, msg any) error

	// AddBuildTask registers cancel as the way to stop buildUUID from the
	// outside (a "cancel-build" request arriving on another connection).
	AddBuildTask(buildUUID string, cancel context.CancelFunc)

	// RmBuildTask forgets buildUUID once its build has finished, win or
	// lose. Safe to call even if the UUID was never registered.
	RmBuildTask(buildUUID string)
}
