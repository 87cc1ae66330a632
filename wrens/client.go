/*Package wrens implements ramp.CommandSink for the WREnS scripting host.

Client talks to the bridge process that runs next to the acquisition
software.  The bridge reads one request per line and answers every request
with one line:

	connect,<target>        open the device session
	send,<command>          pass a property bank command through
	start,<name>,<function> start a repeating function
	stop,<name>,<function>  stop a repeating function
	get,<setting>           read back the value of a setting
	nocapture               end data capture

	OK | OK,<value> | ERR,<message>

Recorder is an in-memory sink that keeps every call instead of sending it.
It backs dry runs, the mock server and the tests.
*/
package wrens

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/origami-ms/wrensramp/comm"
	"github.com/origami-ms/wrensramp/ramp"
)

var (
	// ErrHostRejected is returned when the bridge answers ERR
	ErrHostRejected = errors.New("host rejected request")

	// ErrBadReply is returned when a reply is neither OK nor ERR
	ErrBadReply = errors.New("malformed reply from bridge")
)

// Config describes how to reach the bridge
type Config struct {
	// Addr is host:port, or a serial port when Serial is true
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Serial selects RS232 instead of TCP
	Serial bool `koanf:"Serial" yaml:"Serial"`

	// Baud is the serial line rate
	Baud int `koanf:"Baud" yaml:"Baud"`

	// Checksum enables the CRC-16 frame suffix
	Checksum bool `koanf:"Checksum" yaml:"Checksum"`

	// CommandRate caps the requests per second sent to the bridge, 0 is unlimited
	CommandRate float64 `koanf:"CommandRate" yaml:"CommandRate"`
}

// Client is a ramp.CommandSink speaking the bridge line protocol.  It is not
// safe for concurrent use.
type Client struct {
	dev     comm.RemoteDevice
	limiter *rate.Limiter
	ctx     context.Context

	// Log receives one debug entry per request
	Log logrus.FieldLogger

	// HandshakeRetries is how many times a rejected connect is retried
	HandshakeRetries uint64

	// HandshakeInterval is the pause between connect attempts
	HandshakeInterval time.Duration
}

var _ ramp.CommandSink = (*Client)(nil)

// NewClient returns a Client for the bridge described by cfg.  The connection
// is opened by Connect.
func NewClient(cfg Config) *Client {
	dev := comm.NewRemoteDevice(cfg.Addr, cfg.Serial)
	if cfg.Baud != 0 {
		dev.Baud = cfg.Baud
	}
	dev.Checksum = cfg.Checksum
	c := &Client{
		dev:               dev,
		ctx:               context.Background(),
		Log:               logrus.StandardLogger(),
		HandshakeRetries:  3,
		HandshakeInterval: 500 * time.Millisecond,
	}
	if cfg.CommandRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.CommandRate), 1)
	}
	return c
}

// Bind makes waits and rate limiting return early once ctx is done
func (c *Client) Bind(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
}

// Close ends the bridge session
func (c *Client) Close() error {
	return c.dev.Close()
}

func (c *Client) request(parts ...string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(c.ctx); err != nil {
			return "", err
		}
	}
	req := strings.Join(parts, ",")
	c.Log.WithField("req", req).Debug("bridge request")
	resp, err := c.dev.SendRecv([]byte(req))
	if err != nil {
		return "", errors.Wrapf(err, "bridge request %q", req)
	}
	return parseReply(resp)
}

func parseReply(b []byte) (string, error) {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "OK":
		return "", nil
	case strings.HasPrefix(s, "OK,"):
		return s[3:], nil
	case s == "ERR":
		return "", ErrHostRejected
	case strings.HasPrefix(s, "ERR,"):
		return "", errors.Wrap(ErrHostRejected, s[4:])
	}
	return "", errors.Wrapf(ErrBadReply, "%q", s)
}

// Connect opens the transport and asks the bridge to attach to target.  The
// bridge refuses the handshake while the instrument software is still
// starting, so rejected handshakes are retried.
func (c *Client) Connect(target string) error {
	if c.dev.Conn == nil {
		if err := c.dev.Open(); err != nil {
			return err
		}
	}
	op := func() error {
		_, err := c.request("connect", target)
		if err != nil && !errors.Is(err, ErrHostRejected) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.HandshakeInterval), c.HandshakeRetries)
	return backoff.Retry(op, backoff.WithContext(b, c.ctx))
}

// SendCommand passes cmd through to the property bank interpreter
func (c *Client) SendCommand(cmd string) error {
	_, err := c.request("send", cmd)
	return err
}

// StartRepeatingFunction starts name, which invokes bankFunction every scan
func (c *Client) StartRepeatingFunction(name, bankFunction string) error {
	_, err := c.request("start", name, bankFunction)
	return err
}

// StopRepeatingFunction stops a function started with StartRepeatingFunction
func (c *Client) StopRepeatingFunction(name, bankFunction string) error {
	_, err := c.request("stop", name, bankFunction)
	return err
}

// Wait sleeps locally; the host does not acknowledge scan completion
func (c *Client) Wait(ms int) error {
	if ms <= 0 {
		return c.ctx.Err()
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// ReadSetting reads back the value the instrument applies for setting
func (c *Client) ReadSetting(setting string) (float64, error) {
	v, err := c.request("get", setting)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, errors.Wrapf(ErrBadReply, "value of %s %q", setting, v)
	}
	return f, nil
}

// DisableDataCapture ends data capture on the host
func (c *Client) DisableDataCapture() error {
	_, err := c.request("nocapture")
	return err
}
