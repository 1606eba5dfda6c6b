// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build linux

package socket

import (
	"errors"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking listening TCP socket.
type Listener struct {
	fd   int
	addr *net.TCPAddr
}

// Listen binds a non-blocking TCP listener to addr.
func Listen(addr string, backlog int) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, AddrError{Addr: addr, Cause: err}
	}

	family, sa, err := toSockaddr(tcpAddr)
	if err != nil {
		return nil, AddrError{Addr: addr, Cause: err}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}

	err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	err = unix.Bind(fd, sa)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	err = unix.Listen(fd, backlog)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	l := &Listener{
		fd:   fd,
		addr: fromSockaddr(bound),
	}
	return l, nil
}

// Fd returns the underlying file descriptor.
func (l *Listener) Fd() int {
	return l.fd
}

// Addr returns the bound address. A requested port of 0 is resolved to
// the port the kernel picked.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Accept returns the next pending connection or [ErrWouldBlock] if
// there is none.
func (l *Listener) Accept() (*Socket, error) {
	for {
		fd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return nil, ErrWouldBlock
		}
		if err != nil {
			return nil, err
		}
		unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		var remote net.Addr
		if addr := fromSockaddr(sa); addr != nil {
			remote = addr
		}
		return newSocket(fd, remote), nil
	}
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}

// Socket is a non-blocking connected stream socket.
type Socket struct {
	fd           int
	remote       net.Addr
	writeTimeout time.Duration
}

func newSocket(fd int, remote net.Addr) *Socket {
	return &Socket{
		fd:     fd,
		remote: remote,
	}
}

// Pair returns two connected non-blocking sockets.
func Pair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, err
	}
	return newSocket(fds[0], nil), newSocket(fds[1], nil), nil
}

// Fd returns the underlying file descriptor.
func (s *Socket) Fd() int {
	return s.fd
}

// RemoteAddr returns the peer address, if known.
func (s *Socket) RemoteAddr() net.Addr {
	return s.remote
}

// SetWriteTimeout bounds how long a single Write may wait for the
// socket to become writable. A timeout <= 0 waits forever.
func (s *Socket) SetWriteTimeout(d time.Duration) {
	s.writeTimeout = d
}

// Read implements the [io.Reader] interface. It returns [ErrWouldBlock]
// when no data is available and [io.EOF] once the peer stopped sending.
func (s *Socket) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, b)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			return 0, ErrWouldBlock
		}
		if err != nil {
			return 0, err
		}
		if n == 0 && len(b) > 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write implements the [io.Writer] interface. Unlike Read it does not
// return [ErrWouldBlock]. It waits for the socket to become writable
// again, up to the write timeout, until all of b is written.
func (s *Socket) Write(b []byte) (int, error) {
	var deadline time.Time
	if s.writeTimeout > 0 {
		deadline = time.Now().Add(s.writeTimeout)
	}

	written := 0
	for written < len(b) {
		n, err := unix.Write(s.fd, b[written:])
		if n > 0 {
			written += n
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if errors.Is(err, unix.EAGAIN) {
			err = s.waitWritable(deadline)
			if err != nil {
				return written, err
			}
			continue
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (s *Socket) waitWritable(deadline time.Time) error {
	for {
		timeout := -1
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ErrWriteTimeout
			}
			timeout = int(remaining.Milliseconds()) + 1
		}

		fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrWriteTimeout
		}
		return nil
	}
}

// Shutdown shuts down both directions of the connection.
func (s *Socket) Shutdown() error {
	return unix.Shutdown(s.fd, unix.SHUT_RDWR)
}

// Close closes the socket.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

func toSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	if addr.IP == nil || addr.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if addr.IP != nil {
			copy(sa.Addr[:], addr.IP.To4())
		}
		return unix.AF_INET, sa, nil
	}
	if ip := addr.IP.To16(); ip != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip)
		return unix.AF_INET6, sa, nil
	}
	return 0, nil, errors.New("unsupported ip address")
}

func fromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]).To16(), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(sa.Addr[:]), Port: sa.Port}
	default:
		return nil
	}
}
