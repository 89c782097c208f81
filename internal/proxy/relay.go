package proxy

import (
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// relay copies bytes between the two connections until either direction
// ends, then closes both. The readers carry any bytes already buffered
// during the handshake and must wrap their respective connections.
func relay(down net.Conn, downReader io.Reader, up net.Conn, upReader io.Reader) (upBytes, downBytes int64, err error) {
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			up.Close()
			down.Close()
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		defer closeBoth()
		n, err := io.Copy(up, downReader)
		upBytes = n
		return relayErr(err)
	})
	g.Go(func() error {
		defer closeBoth()
		n, err := io.Copy(down, upReader)
		downBytes = n
		return relayErr(err)
	})
	err = g.Wait()
	return upBytes, downBytes, err
}

// relayErr drops the errors that are the normal result of one side
// closing the tunnel.
func relayErr(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
