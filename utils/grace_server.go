package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Zero-downtime restarts: SIGUSR2 re-execs the binary with the listening
// socket handed over as fd 3, then the old process drains and exits. SIGTERM
// drains without a replacement.
const (
	relaunchEnvKey = "BLOGCMS_INHERITED_LISTENER"
	inheritedFD    = 3

	drainTimeout = 30 * time.Second
)

type graceServer struct {
	http *http.Server
	ln   net.Listener
	done chan struct{}
}

// GraceServer serves handler on addr until SIGTERM, re-execing on SIGUSR2.
// It returns nil after a clean drain.
func GraceServer(addr string, handler http.Handler) error {
	srv := &graceServer{
		http: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Minute,
			WriteTimeout: time.Minute,
		},
		done: make(chan struct{}),
	}

	ln, err := srv.listen(addr)
	if err != nil {
		return err
	}
	srv.ln = ln

	go srv.watchSignals()

	err = srv.http.Serve(ln)
	<-srv.done
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *graceServer) listen(addr string) (net.Listener, error) {
	if os.Getenv(relaunchEnvKey) != "" {
		return net.FileListener(os.NewFile(inheritedFD, "listener"))
	}
	return net.Listen("tcp", addr)
}

func (s *graceServer) watchSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGUSR2)

	for sig := range sigs {
		if sig == syscall.SIGUSR2 {
			pid, err := s.relaunch()
			if err != nil {
				Sugar.Errorf("relaunch failed, keeping current process: %v", err)
				continue
			}
			Sugar.Infof("replacement process started pid=%d, draining old one", pid)
		} else {
			Sugar.Info("SIGTERM received, draining connections")
		}
		s.drain()
		return
	}
}

func (s *graceServer) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		Sugar.Errorf("shutdown incomplete: %v", err)
	}
	close(s.done)
}

// relaunch forks a fresh copy of this binary with the listener as fd 3.
func (s *graceServer) relaunch() (int, error) {
	tcp, ok := s.ln.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T cannot be handed over", s.ln)
	}
	file, err := tcp.File()
	if err != nil {
		return 0, fmt.Errorf("dup listener: %w", err)
	}

	env := os.Environ()
	if os.Getenv(relaunchEnvKey) == "" {
		env = append(env, relaunchEnvKey+"=1")
	}

	return syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
}
