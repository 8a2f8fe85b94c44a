package daemon

import (
	"net"
	"os"
	"time"

	"github.com/grovetools/deskd/errors"
)

// Connect returns a Client for the daemon listening on socketPath. It
// fails with SERVICE_UNAVAILABLE when nothing accepts connections there.
func Connect(socketPath string) (Client, error) {
	if _, err := os.Stat(socketPath); err != nil {
		return nil, notRunning(socketPath, err)
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return nil, notRunning(socketPath, err)
	}
	conn.Close()
	return NewRemoteClient(socketPath), nil
}

func notRunning(socketPath string, err error) error {
	return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "deskd daemon is not running; start it with 'deskd start'").
		WithDetail("socket", socketPath)
}
