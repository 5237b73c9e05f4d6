package messages

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mikeyg42/otgcam/internal/config"
)

func waitText(t *testing.T, ch <-chan string, timeout time.Duration) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(timeout):
		t.Fatal("timed out waiting for display")
		return ""
	}
}

func TestBoardDisplaysInOrderWithDelay(t *testing.T) {
	const delay = 40 * time.Millisecond
	updates := make(chan string, 10)
	var stamps []time.Time

	b := NewBoard(config.MessagesConfig{Delay: delay}, WithOnDisplay(func(text string) {
		stamps = append(stamps, time.Now())
		updates <- text
	}), WithLogger(zap.NewNop()))
	defer b.Close()

	start := time.Now()
	b.Show("Searching for camera...")
	b.Show("Device found: /dev/bus/usb/001/002")
	b.Show("No suitable USB camera found")

	if got := waitText(t, updates, time.Second); got != "Searching for camera..." {
		t.Fatalf("first display = %q", got)
	}
	if time.Since(start) > delay {
		t.Fatal("first message of an idle board should display immediately")
	}
	waitText(t, updates, time.Second)
	final := waitText(t, updates, time.Second)

	want := "Searching for camera...\nDevice found: /dev/bus/usb/001/002\nNo suitable USB camera found"
	if final != want || b.Text() != want {
		t.Fatalf("final text = %q", final)
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < delay/2 {
			t.Fatalf("messages %d and %d displayed %v apart", i-1, i, gap)
		}
	}
	if b.Pending() != 0 {
		t.Fatalf("Pending = %d", b.Pending())
	}
}

func TestBoardMaxLines(t *testing.T) {
	updates := make(chan string, 10)
	b := NewBoard(config.MessagesConfig{MaxLines: 2}, WithOnDisplay(func(text string) { updates <- text }), WithLogger(zap.NewNop()))
	defer b.Close()

	for _, m := range []string{"a", "b", "c"} {
		b.Show(m)
		waitText(t, updates, time.Second)
	}
	if got := b.Lines(); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("Lines = %v", got)
	}
}

func TestBoardLogsMessages(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	updates := make(chan string, 1)
	b := NewBoard(config.MessagesConfig{}, WithLogger(zap.New(core)), WithOnDisplay(func(text string) { updates <- text }))
	defer b.Close()

	b.Show("Device connected and interface claimed")
	waitText(t, updates, time.Second)

	entries := logs.FilterMessage("Device connected and interface claimed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
}

func TestBoardShowAfterClose(t *testing.T) {
	b := NewBoard(config.MessagesConfig{Delay: time.Millisecond}, WithLogger(zap.NewNop()))
	b.Close()
	b.Close()

	b.Show("ignored")
	time.Sleep(10 * time.Millisecond)
	if b.Text() != "" || b.Pending() != 0 {
		t.Fatalf("closed board accepted a message: %q", b.Text())
	}
}

func TestBoardOnMessage(t *testing.T) {
	msgs := make(chan string, 4)
	b := NewBoard(config.MessagesConfig{MaxLines: 1}, WithLogger(zap.NewNop()), WithOnMessage(func(msg string) { msgs <- msg }))
	defer b.Close()

	b.Show("Searching for camera...")
	b.Show("Device found: /dev/bus/usb/001/004")

	for _, want := range []string{"Searching for camera...", "Device found: /dev/bus/usb/001/004"} {
		if got := waitText(t, msgs, time.Second); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}
