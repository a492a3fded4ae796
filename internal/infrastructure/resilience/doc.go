/*
Package resilience provides a circuit breaker that stops repeated attempts
at an operation that keeps failing.

The session registry wraps terminal allocation in a breaker: when the host
runs out of pseudo-terminals or process slots, further create requests fail
fast until a cool-down passes instead of each paying for a failed spawn.

# Usage

	breaker := resilience.New("pty", resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		IsFailure: func(err error) bool { return errors.Is(err, errs.ErrLaunchFailed) },
	})

	proc, err := resilience.Execute(breaker, func() (*launcher.Process, error) {
		return launcher.Launch(spec)
	})

# States

	Closed --[Threshold consecutive failures]-> Open --[Cooldown]-> Half-Open
	Half-Open --[trial succeeds]-> Closed
	Half-Open --[trial fails]-> Open
*/
package resilience
