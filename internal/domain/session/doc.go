// Package session provides persistent shell sessions backed by a
// pseudo-terminal.
//
// Each session owns one interactive bash process and its terminal for its
// whole lifetime. Commands run inside the live shell, so working directory,
// variables and functions carry over between calls.
//
// Components:
//   - Manager: Session registry, admission and teardown
//   - Session: Terminal reader, command history and lifecycle state
//   - Protocol: Sentinel framing that detects completion and exit status
//
// Exec Flow:
//  1. Classify the command and claim the session (SessionBusy if taken)
//  2. Write the command framed by start and end sentinels
//  3. Collect lines between the sentinels into a fresh output buffer
//  4. On timeout send Ctrl-C twice and resynchronise on a recovery marker
//
// Teardown:
//
//	Close, shell death, idle expiry and server shutdown all converge on one
//	teardown that hangs up the process group, escalates to SIGKILL and
//	releases the terminal.
//
// Example Usage:
//
//	mgr := session.NewManager(session.DefaultConfig(), filter, logger, metrics)
//	s, err := mgr.Create(ctx, session.CreateRequest{ID: "build"})
//	exec, err := mgr.Exec(ctx, "build", "make test", 10*time.Minute)
//	err = mgr.Close(ctx, "build")
package session
