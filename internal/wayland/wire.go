// Package wayland implements a small, hand-rolled client for the
// wlr-data-control-v1 Wayland protocol extension: enough wire framing,
// object binding, and event dispatch to drive a clipboard manager without
// linking against libwayland-client. It is grounded on and generalizes
// thiagojdb-adoctl's pkg/clipboard/internal/wayland/protocol.go (a
// send-only, one-shot clipboard owner) into the full bidirectional client
// a persistent daemon needs.
package wayland

import (
	"encoding/binary"
	"fmt"
	"syscall"
)

var le = binary.LittleEndian

// header is 8 bytes: object id (4), opcode (2) | size (2).
const headerSize = 8

// conn is a buffered Wayland wire connection over a Unix domain socket.
type conn struct {
	fd         int
	inBuf      []byte
	pendingFds []int
}

func dial(sockPath string) (*conn, error) {
	fd, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := syscall.Connect(fd, &syscall.SockaddrUnix{Name: sockPath}); err != nil {
		syscall.Close(fd) //nolint:errcheck
		return nil, err
	}
	return &conn{fd: fd}, nil
}

func (c *conn) close() {
	syscall.Close(c.fd) //nolint:errcheck
}

// sendMsg writes a Wayland request carrying no file descriptor.
func (c *conn) sendMsg(objectID uint32, opcode uint16, args []byte) error {
	size := uint16(headerSize + len(args))
	buf := make([]byte, size)
	le.PutUint32(buf[0:], objectID)
	le.PutUint32(buf[4:], uint32(opcode)|uint32(size)<<16)
	copy(buf[8:], args)
	_, err := syscall.Write(c.fd, buf)
	return err
}

// sendMsgWithFD writes a Wayland request that hands a file descriptor to
// the compositor via SCM_RIGHTS, used by zwlr_data_control_offer_v1.receive.
// The fds of zwlr_data_control_source_v1.send events travel the other way
// and are picked up by readMsg.
func (c *conn) sendMsgWithFD(objectID uint32, opcode uint16, args []byte, fd int) error {
	size := uint16(headerSize + len(args))
	buf := make([]byte, size)
	le.PutUint32(buf[0:], objectID)
	le.PutUint32(buf[4:], uint32(opcode)|uint32(size)<<16)
	copy(buf[8:], args)

	rights := syscall.UnixRights(fd)
	return syscall.Sendmsg(c.fd, buf, rights, nil, 0)
}

// readMsg reads the next complete Wayland event, returning any fd that
// arrived with it via SCM_RIGHTS. fd is -1 when none did.
func (c *conn) readMsg() (objectID uint32, opcode uint16, payload []byte, fd int, err error) {
	fd = -1
	for {
		if len(c.inBuf) >= headerSize {
			sizeOpcode := le.Uint32(c.inBuf[4:8])
			size := int(sizeOpcode >> 16)
			if size >= headerSize && len(c.inBuf) >= size {
				objectID = le.Uint32(c.inBuf[0:4])
				opcode = uint16(sizeOpcode & 0xffff)
				payload = make([]byte, size-headerSize)
				copy(payload, c.inBuf[headerSize:size])
				c.inBuf = c.inBuf[size:]
				if len(c.pendingFds) > 0 {
					fd = c.pendingFds[0]
					c.pendingFds = c.pendingFds[1:]
				}
				return
			}
		}

		buf := make([]byte, 4096)
		oob := make([]byte, syscall.CmsgSpace(4*8))
		n, oobn, _, _, recvErr := syscall.Recvmsg(c.fd, buf, oob, 0)
		if recvErr != nil {
			err = recvErr
			return
		}
		if n == 0 {
			err = fmt.Errorf("wayland: connection closed")
			return
		}
		c.inBuf = append(c.inBuf, buf[:n]...)

		if oobn > 0 {
			scms, parseErr := syscall.ParseSocketControlMessage(oob[:oobn])
			if parseErr == nil {
				for _, scm := range scms {
					rights, parseErr := syscall.ParseUnixRights(&scm)
					if parseErr == nil {
						c.pendingFds = append(c.pendingFds, rights...)
					}
				}
			}
		}
	}
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	le.PutUint32(b, v)
	return b
}

// encodeString encodes a Wayland string argument: uint32 length (including
// the null terminator), the bytes, padded to 4-byte alignment.
func encodeString(s string) []byte {
	sBytes := append([]byte(s), 0)
	length := len(sBytes)
	padded := (length + 3) &^ 3
	buf := make([]byte, 4+padded)
	le.PutUint32(buf[0:], uint32(length))
	copy(buf[4:], sBytes)
	return buf
}

func decodeString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", data, fmt.Errorf("wayland: short string length field")
	}
	length := int(le.Uint32(data[:4]))
	data = data[4:]
	if length == 0 {
		return "", data, nil
	}
	padded := (length + 3) &^ 3
	if len(data) < padded {
		return "", data, fmt.Errorf("wayland: short string data")
	}
	s := string(data[:length-1])
	return s, data[padded:], nil
}

func decodeUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, data, fmt.Errorf("wayland: short uint32 field")
	}
	return le.Uint32(data[:4]), data[4:], nil
}

func concat(slices ...[]byte) []byte {
	var total int
	for _, s := range slices {
		total += len(s)
	}
	result := make([]byte, 0, total)
	for _, s := range slices {
		result = append(result, s...)
	}
	return result
}
