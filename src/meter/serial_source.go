package meter

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the front-end MCU's serial speed
const DefaultBaudRate = 115200

// SerialSource reads ADC windows streamed by the sensor front-end over a serial
// line. Each line is one window of comma separated raw counts.
type SerialSource struct {
	// Window is the number of samples the front-end sends per line. Shorter
	// lines are rejected; 0 accepts any length.
	Window int

	portName string
	baudRate int
	timeout  time.Duration
	rms      *RMSCalculator

	mu     sync.Mutex
	port   serial.Port
	frames chan []uint16
}

// NewSerialSource creates a source on the given port. The port is opened lazily
// on the first read and reopened after any I/O error.
func NewSerialSource(portName string, baudRate int, timeout time.Duration, rms *RMSCalculator) *SerialSource {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &SerialSource{
		portName: portName,
		baudRate: baudRate,
		timeout:  timeout,
		rms:      rms,
	}
}

// ReadCurrentRMS waits for the next window and returns its RMS current
func (s *SerialSource) ReadCurrentRMS(ctx context.Context) (float64, error) {
	frames, err := s.ensureOpen()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSensorTransient, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case frame, ok := <-frames:
		if !ok {
			return 0, fmt.Errorf("%w: serial port %s closed", ErrSensorTransient, s.portName)
		}
		if len(frame) < s.Window {
			return 0, fmt.Errorf("%w: short window of %d samples", ErrSensorTransient, len(frame))
		}
		return s.rms.Irms(frame), nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: no frame within %v", ErrSensorTransient, s.timeout)
	}
}

// Close releases the serial port
func (s *SerialSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// ensureOpen opens the port if needed and returns the current frame channel
func (s *SerialSource) ensureOpen() (<-chan []uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return s.frames, nil
	}

	port, err := serial.Open(s.portName, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", s.portName, err)
	}

	s.port = port
	s.frames = make(chan []uint16, 1)
	go s.readFrames(port, s.frames)

	log.Printf("Sensor: opened %s at %d baud\n", s.portName, s.baudRate)
	return s.frames, nil
}

// readFrames parses lines until the port fails, keeping only the newest frame
func (s *SerialSource) readFrames(port serial.Port, frames chan []uint16) {
	defer close(frames)

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		frame, err := parseFrame(scanner.Text())
		if err != nil {
			log.Printf("Sensor: dropping malformed frame: %v\n", err)
			continue
		}

		select {
		case frames <- frame:
		default:
			// Replace the stale frame nobody has read yet
			select {
			case <-frames:
			default:
			}
			frames <- frame
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Sensor: serial read failed: %v\n", err)
	}

	s.mu.Lock()
	if s.port == port {
		_ = port.Close()
		s.port = nil
	}
	s.mu.Unlock()
}

// parseFrame parses one line of comma separated ADC counts
func parseFrame(line string) ([]uint16, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty frame")
	}

	fields := strings.Split(line, ",")
	frame := make([]uint16, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad sample %q: %w", f, err)
		}
		frame = append(frame, uint16(v))
	}
	return frame, nil
}
