package logger_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmsc/mini65-sim/logger"
)

func expectEquality(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCentralLogger(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	expectEquality(t, w.String(), "")

	log.Log(logger.Allow, "test", "this is a test")
	log.Write(w)
	expectEquality(t, w.String(), "test: this is a test\n")

	w.Reset()

	log.Log(logger.Allow, "test2", "this is another test")
	log.Write(w)
	expectEquality(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 100)
	expectEquality(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 2)
	expectEquality(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 1)
	expectEquality(t, w.String(), "test2: this is another test\n")

	w.Reset()
	log.Tail(w, 0)
	expectEquality(t, w.String(), "")
}

type prohibitLogging struct {
	allow bool
}

func (p prohibitLogging) AllowLogging() bool { return p.allow }

func TestPermissions(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	for _, allow := range []bool{true, false, true} {
		p := prohibitLogging{allow: allow}
		log.Clear()
		w.Reset()
		log.Log(p, "tag", "detail")
		log.Write(w)
		if allow {
			expectEquality(t, w.String(), "tag: detail\n")
		} else {
			expectEquality(t, w.String(), "")
		}
	}
}

func TestErrorLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	err := errors.New("test error")

	log.Log(logger.Allow, "tag", err)
	log.Write(w)
	expectEquality(t, w.String(), "tag: test error\n")

	log.Clear()
	w.Reset()

	log.Logf(logger.Allow, "tag", "wrapped: %v", err)
	log.Write(w)
	expectEquality(t, w.String(), "tag: wrapped: test error\n")
}

type stringerTest struct{}

func (stringerTest) String() string { return "stringer test" }

func TestStringerLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "tag", stringerTest{})
	log.Write(w)
	expectEquality(t, w.String(), "tag: stringer test\n")
}

func TestIntLogging(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Log(logger.Allow, "tag", 100)
	log.Write(w)
	expectEquality(t, w.String(), "tag: 100\n")
}

func TestRingOverwrite(t *testing.T) {
	log := logger.NewLogger(3)
	w := &strings.Builder{}

	for i := 0; i < 5; i++ {
		log.Logf(logger.Allow, "n", "%d", i)
	}
	log.Write(w)
	expectEquality(t, w.String(), "n: 2\nn: 3\nn: 4\n")
}
