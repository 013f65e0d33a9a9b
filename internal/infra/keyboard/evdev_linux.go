//go:build linux && !gohook

package keyboard

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"voicetype/internal/domain"
)

const (
	devInputGlob = "/dev/input/event*"
	keyMax       = 0x2ff

	iocRead      = 2
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	nrGetName = 0x06
	nrGetBit  = 0x20
)

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

var eventSize = int(unsafe.Sizeof(inputEvent{}))

type device struct {
	fd   int
	path string
	name string
}

// Monitor multiplexes every device exposing the trigger key over one
// epoll instance. Next must not be called concurrently.
type Monitor struct {
	key    domain.TriggerKey
	logger *slog.Logger

	mu      sync.Mutex
	epfd    int
	wakefd  int
	devices map[int]*device
	pending []domain.KeyEvent
	readBuf []byte
	events  []unix.EpollEvent

	closed    atomic.Bool
	closeOnce sync.Once
}

func Open(key domain.TriggerKey, logger *slog.Logger) (*Monitor, error) {
	paths, err := filepath.Glob(devInputGlob)
	if err != nil {
		return nil, fmt.Errorf("listing input devices: %w", err)
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("creating epoll: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("creating eventfd: %w", err)
	}

	m := &Monitor{
		key:     key,
		logger:  logger,
		epfd:    epfd,
		wakefd:  wakefd,
		devices: make(map[int]*device),
		readBuf: make([]byte, eventSize*64),
		events:  make([]unix.EpollEvent, 16),
	}

	if err := m.watch(wakefd); err != nil {
		m.release()
		return nil, err
	}

	var denied int
	for _, path := range paths {
		dev, err := openDevice(path, key.Code)
		if err != nil {
			if errors.Is(err, unix.EACCES) {
				denied++
			}
			logger.Debug("skipping input device", "path", path, "error", err)
			continue
		}
		if dev == nil {
			continue
		}
		if err := m.watch(dev.fd); err != nil {
			unix.Close(dev.fd)
			logger.Warn("watching input device", "path", path, "error", err)
			continue
		}
		m.devices[dev.fd] = dev
		logger.Info("found keyboard device", "name", dev.name, "path", dev.path)
	}

	if len(m.devices) == 0 {
		m.release()
		if denied > 0 {
			return nil, fmt.Errorf("%w: %s (%d devices not readable, add the user to the input group)",
				domain.ErrDeviceUnavailable, key.Name, denied)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrDeviceUnavailable, key.Name)
	}

	return m, nil
}

// openDevice returns nil, nil when the device lacks the key.
func openDevice(path string, code uint16) (*device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	bits := make([]byte, keyMax/8+1)
	if err := ioctlRead(fd, nrGetBit+evKey, bits); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("querying key capabilities: %w", err)
	}
	if !hasKey(bits, code) {
		unix.Close(fd)
		return nil, nil
	}

	name := make([]byte, 256)
	if err := ioctlRead(fd, nrGetName, name); err != nil {
		name = []byte(path)
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return &device{fd: fd, path: path, name: string(name)}, nil
}

func ioctlRead(fd int, nr uintptr, buf []byte) error {
	req := uintptr(iocRead)<<iocDirShift |
		uintptr(len(buf))<<iocSizeShift |
		uintptr('E')<<iocTypeShift |
		nr<<iocNRShift
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func (m *Monitor) watch(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("adding fd to epoll: %w", err)
	}
	return nil
}

// Devices lists the names of the watched devices.
func (m *Monitor) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.devices))
	for _, dev := range m.devices {
		names = append(names, dev.name)
	}
	return names
}

// Next blocks until a trigger key event arrives on any watched device.
func (m *Monitor) Next(ctx context.Context) (domain.KeyEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if len(m.pending) > 0 {
			ev := m.pending[0]
			m.pending = m.pending[1:]
			return ev, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.KeyEvent{}, err
		}
		if m.closed.Load() {
			return domain.KeyEvent{}, ErrClosed
		}
		if len(m.devices) == 0 {
			return domain.KeyEvent{}, fmt.Errorf("%w: all devices disconnected", domain.ErrDeviceUnavailable)
		}

		n, err := unix.EpollWait(m.epfd, m.events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return domain.KeyEvent{}, fmt.Errorf("waiting for input: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(m.events[i].Fd)
			if fd == m.wakefd {
				return domain.KeyEvent{}, ErrClosed
			}
			m.readDevice(fd)
		}
	}
}

func (m *Monitor) readDevice(fd int) {
	dev, ok := m.devices[fd]
	if !ok {
		return
	}

	for {
		n, err := unix.Read(fd, m.readBuf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return
			}
			m.logger.Warn("input device lost", "name", dev.name, "path", dev.path, "error", err)
			m.drop(fd)
			return
		}
		if n == 0 {
			m.drop(fd)
			return
		}
		m.pending = decodeEvents(m.readBuf[:n], eventSize, m.key.Code, dev.name, m.pending)
		if n < len(m.readBuf) {
			return
		}
	}
}

func (m *Monitor) drop(fd int) {
	unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	unix.Close(fd)
	delete(m.devices, fd)
}

// Close wakes a blocked Next and releases every descriptor.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		var one [8]byte
		binary.NativeEndian.PutUint64(one[:], 1)
		unix.Write(m.wakefd, one[:])

		m.mu.Lock()
		m.release()
		m.mu.Unlock()
	})
	return nil
}

func (m *Monitor) release() {
	for fd := range m.devices {
		unix.Close(fd)
	}
	m.devices = map[int]*device{}
	if m.wakefd >= 0 {
		unix.Close(m.wakefd)
		m.wakefd = -1
	}
	if m.epfd >= 0 {
		unix.Close(m.epfd)
		m.epfd = -1
	}
}
