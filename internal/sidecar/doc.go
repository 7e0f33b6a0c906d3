// Package sidecar launches and supervises the local backend server that
// backs the desktop window.
//
// The package has three parts that the app layer sequences:
//
//   - Negotiator picks the TCP port the sidecar will bind.
//   - Prober waits until that port accepts connections.
//   - Supervisor spawns the sidecar, relays its output and shuts it down.
//
// # Spawning
//
//	sup := sidecar.NewSupervisor("/path/to/desktop", nil,
//	    sidecar.WithLogger(logger),
//	)
//	port, err := sidecar.NewNegotiator().ChoosePort()
//	if err != nil {
//	    return err
//	}
//	h, err := sup.Spawn(port)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
// The sidecar receives LITESKILL_DESKTOP=true and PORT=<port> in its
// environment. Its stdout lines are logged at info level and its stderr
// lines at warn level.
//
// # Shutdown
//
// Supervisor.Shutdown may be called from any number of goroutines; only the
// first call acts. It sends a cooperative termination request (SIGTERM on
// POSIX, taskkill on Windows), polls the PID for up to the graceful timeout
// and force-kills the process if it is still alive. Errors along the way are
// logged and absorbed.
//
// Handle.Close kills a still-running process, so deferring it guarantees the
// sidecar does not outlive the launcher on paths that skip Shutdown.
package sidecar
