/*Package comm provides the transport used to reach the acquisition host's
scripting bridge.

A RemoteDevice is a line-oriented connection over TCP or RS232.  Requests are
terminated with a carriage return and so are replies.  When Checksum is set,
every frame carries a CRC-16/CCITT suffix of the form "*XXXX" ahead of the
terminator, which is what the serial variant of the bridge expects.

	dev := comm.NewRemoteDevice("192.168.100.20:7520", false)
	if err := dev.Open(); err != nil {
		return err
	}
	defer dev.Close()
	resp, err := dev.SendRecv([]byte("get,SOURCE_BIAS_SETTING"))
*/
package comm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/snksoft/crc"
	"github.com/tarm/serial"

	"github.com/origami-ms/wrensramp/util"
)

var (
	terminator = byte('\r')

	checksumMark = byte('*')

	crcTable = crc.NewTable(crc.CCITT)

	// ErrNotConnected is generated when .Conn is nil and Send or Recv is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")

	// ErrBadChecksum is generated when the CRC suffix of a reply does not match its payload
	ErrBadChecksum = errors.New("checksum mismatch in reply")

	// ErrMissingChecksum is generated when checksums are enabled and a reply has none
	ErrMissingChecksum = errors.New("reply carries no checksum")
)

// DefaultBaud is the baud rate used for serial links when none is given
const DefaultBaud = 9600

/*RemoteDevice has an address and speaks carriage return framed lines

if IsSerial is true, Addr is a serial port such as /dev/ttyS4 or COM3 and Baud
is used; otherwise Addr is a host:port pair.

RemoteDevice is not safe for concurrent use; the bridge session it carries
belongs to a single ramp run.
*/
type RemoteDevice struct {
	Addr     string
	IsSerial bool
	Baud     int

	// Checksum enables the CRC-16 frame suffix in both directions
	Checksum bool

	// Timeout bounds each read and write on a TCP connection
	Timeout time.Duration

	Conn io.ReadWriteCloser

	rdr *bufio.Reader
}

// NewRemoteDevice creates a new RemoteDevice instance
func NewRemoteDevice(addr string, serial bool) RemoteDevice {
	return RemoteDevice{
		Addr:     addr,
		IsSerial: serial,
		Baud:     DefaultBaud,
		Timeout:  3 * time.Second}
}

// SerialConf yields a pointer to a serial config object for use with serial.OpenPort
func (rd *RemoteDevice) SerialConf() *serial.Config {
	baud := rd.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	return &serial.Config{Name: rd.Addr, Baud: baud, ReadTimeout: rd.Timeout}
}

// Open the connection, setting the Conn variable
func (rd *RemoteDevice) Open() error {
	// we use an exponential backoff, the bridge drops
	// connections that arrive while it is still starting
	wasTimeout := false
	op := func() error {
		err := rd.open()
		if err != nil {
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "refused") {
				wasTimeout = false
				return backoff.Permanent(err)
			}
			wasTimeout = true
			return err
		}
		wasTimeout = false
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("connection timeout to %s: %w", rd.Addr, err)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var err error
	var conn io.ReadWriteCloser
	if rd.IsSerial {
		conn, err = serial.OpenPort(rd.SerialConf())
	} else {
		conn, err = util.TCPSetup(rd.Addr, rd.Timeout)
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	rd.rdr = bufio.NewReader(conn)
	return nil
}

// Close the connection, nil-ing the Conn variable
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
		rd.rdr = nil
	}
	return err
}

// Send writes data to the remote
func (rd *RemoteDevice) Send(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	rd.refreshDeadline()
	msg := b
	if rd.Checksum {
		msg = AppendChecksum(msg)
	}
	msg = append(msg, terminator)
	_, err := rd.Conn.Write(msg)
	return err
}

// Recv reads one frame from the remote and strips the terminator
func (rd *RemoteDevice) Recv() ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	rd.refreshDeadline()
	buf, err := rd.rdr.ReadBytes(terminator)
	if err != nil {
		return []byte{}, err
	}
	if !bytes.HasSuffix(buf, []byte{terminator}) {
		return buf, ErrTerminatorNotFound
	}
	buf = buf[:len(buf)-1]
	if rd.Checksum {
		return StripChecksum(buf)
	}
	return buf, nil
}

// SendRecv sends a frame then returns the reply with the terminator stripped
func (rd *RemoteDevice) SendRecv(b []byte) ([]byte, error) {
	if rd.Conn == nil {
		return []byte{}, ErrNotConnected
	}
	err := rd.Send(b)
	if err != nil {
		return []byte{}, err
	}
	return rd.Recv()
}

// refreshDeadline pushes the read/write deadline forward on TCP connections;
// the session is long lived and idles through every scan wait
func (rd *RemoteDevice) refreshDeadline() {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	if d, ok := rd.Conn.(deadliner); ok && rd.Timeout > 0 {
		d.SetDeadline(time.Now().Add(rd.Timeout))
	}
}

// Checksum computes the CRC-16/CCITT of b
func Checksum(b []byte) uint16 {
	c := crcTable.InitCrc()
	c = crcTable.UpdateCrc(c, b)
	return crcTable.CRC16(c)
}

// AppendChecksum returns b with "*XXXX" appended, XXXX being the upper-case hex CRC of b
func AppendChecksum(b []byte) []byte {
	out := make([]byte, 0, len(b)+5)
	out = append(out, b...)
	out = append(out, checksumMark)
	return append(out, fmt.Sprintf("%04X", Checksum(b))...)
}

// StripChecksum verifies and removes the "*XXXX" suffix from a frame
func StripChecksum(b []byte) ([]byte, error) {
	idx := bytes.LastIndexByte(b, checksumMark)
	if idx < 0 || len(b)-idx != 5 {
		return b, ErrMissingChecksum
	}
	payload, sum := b[:idx], string(b[idx+1:])
	want, err := strconv.ParseUint(sum, 16, 16)
	if err != nil {
		return payload, ErrBadChecksum
	}
	if uint16(want) != Checksum(payload) {
		return payload, ErrBadChecksum
	}
	return payload, nil
}
