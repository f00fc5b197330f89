package transport

import (
	"context"
	"fmt"
	"time"

	serial "github.com/daedaluz/goserial"
)

// Serial drives a USB-CDC tty with github.com/daedaluz/goserial.
type Serial struct {
	guard callGuard

	path string
	baud int
	port *serial.Port
}

// NewSerial opens path (e.g. "/dev/ttyACM0") at baud and puts the line into
// raw mode, matching what a USB-CDC ACM bootloader link expects.
func NewSerial(path string, baud int) (*Serial, error) {
	opts := serial.NewOptions()
	opts.SetReadTimeout(100 * time.Millisecond)

	port, err := serial.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, fmt.Errorf("set raw mode: %w", err)
	}
	s := &Serial{path: path, baud: baud, port: port}
	if err := s.setSpeed(baud); err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

func (s *Serial) setSpeed(baud int) error {
	attrs, err := s.port.GetAttr2()
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	attrs.SetCustomSpeed(uint32(baud))
	if err := s.port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		return fmt.Errorf("set speed %d: %w", baud, err)
	}
	return nil
}

func (s *Serial) Write(ctx context.Context, p []byte) error {
	unlock := s.guard.lock()
	defer unlock()
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	n, err := s.port.Write(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: short write %d/%d", ErrDisconnected, n, len(p))
	}
	return nil
}

func (s *Serial) ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error) {
	unlock := s.guard.lock()
	defer unlock()

	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(timeout)
	for got < n {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		step := remaining
		if step > 50*time.Millisecond {
			step = 50 * time.Millisecond
		}
		r, err := s.port.ReadTimeout(buf[got:], step)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		got += r
	}
	return buf, nil
}

func (s *Serial) Drain() error {
	unlock := s.guard.lock()
	defer unlock()
	if err := s.port.Flush(serial.TCIOFLUSH); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Retune closes and reopens the port at a new baud rate, per spec.md §4.1 —
// the SPRD BSL CHANGE_BAUDRATE sequence depends on this.
func (s *Serial) Retune(baud int) error {
	unlock := s.guard.lock()
	defer unlock()
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("close for retune: %w", err)
	}

	opts := serial.NewOptions()
	opts.SetReadTimeout(100 * time.Millisecond)
	port, err := serial.Open(s.path, opts)
	if err != nil {
		return fmt.Errorf("reopen %s at %d: %w", s.path, baud, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return err
	}
	s.port = port
	s.baud = baud
	return s.setSpeed(baud)
}

// Speed is always SpeedUnknown for a plain tty — a CDC ACM device does not
// expose its negotiated USB speed through the line discipline. Use the USB
// backend (transport.USB) to observe link speed.
func (s *Serial) Speed() Speed {
	return SpeedUnknown
}

func (s *Serial) Close() error {
	unlock := s.guard.lock()
	defer unlock()
	return s.port.Close()
}
