package main

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/theckman/yacspin"
	"golang.org/x/term"
)

// spinner shows run progress on a terminal.  The zero value is disabled and
// every method is a no-op.
type spinner struct {
	sp  *yacspin.Spinner
	out io.Writer
}

func newSpinner(enabled bool) (*spinner, error) {
	if !enabled || !term.IsTerminal(int(os.Stdout.Fd())) {
		return &spinner{}, nil
	}
	sp, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ramping",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return nil, err
	}
	s := &spinner{sp: sp, out: logrus.StandardLogger().Out}
	logrus.SetOutput(&pausingWriter{sp: sp, w: s.out})
	return s, sp.Start()
}

func (s *spinner) message(msg string) {
	if s.sp != nil {
		s.sp.Message(msg)
	}
}

func (s *spinner) stop(msg string, failed bool) {
	if s.sp == nil {
		return
	}
	if failed {
		s.sp.StopFailMessage(msg)
		s.sp.StopFail()
	} else {
		s.sp.StopMessage(msg)
		s.sp.Stop()
	}
	logrus.SetOutput(s.out)
}

// pausingWriter pauses the spinner around every log line so the two do not
// interleave on the terminal
type pausingWriter struct {
	mu sync.Mutex
	sp *yacspin.Spinner
	w  io.Writer
}

func (p *pausingWriter) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sp.Pause()
	defer p.sp.Unpause()
	return p.w.Write(b)
}
