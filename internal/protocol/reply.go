package protocol

import (
	"fmt"
	"io"

	"github.com/bigcomputing/nws/internal/value"
	"github.com/bigcomputing/nws/internal/wire"
)

// typeDirectString is the type descriptor the original server used for
// values it manufactures itself (list vars/list wss/mktemp ws text
// replies), rather than ones a client stored.
const typeDirectString uint32 = 1

func writeStatus(w io.Writer, status int) error {
	_, err := fmt.Fprintf(w, "%04d", status)
	return err
}

func writeDigits20(w io.Writer, n int64) error {
	_, err := fmt.Fprintf(w, "%020d", n)
	return err
}

// writeVID20 writes vid left-justified and truncated to exactly 20 bytes
// (space-padded if shorter), matching the original's "%-20.20s" cookie
// field (spec §6).
func writeVID20(w io.Writer, vid string) error {
	_, err := fmt.Fprintf(w, "%-20.20s", vid)
	return err
}

// sendShort writes a short reply: the optional metadata map, then the
// 4-digit status.
func sendShort(c *Conn, status int, metadata map[string]string) error {
	defer c.recordCommand(status)
	if c.metadataFromServer {
		if err := wire.WriteMap(c.rw, metadata); err != nil {
			return err
		}
	}
	return writeStatus(c.rw, status)
}

func sendShortOK(c *Conn) error {
	return sendShort(c, statusOK, map[string]string{})
}

func sendShortErr(c *Conn, err error) error {
	status, reason := statusFor(err)
	return sendShort(c, status, map[string]string{"nwsReason": reason})
}

// sendLong writes a long reply: optional metadata map, 4-digit status,
// 20-digit type descriptor, the cookie region (vid + index) only in
// cookie mode, 20-digit length, then the value bytes.
func sendLong(c *Conn, status int, metadata map[string]string, typ uint32, vid string, index int64, val *value.Value) error {
	defer c.recordCommand(status)
	if c.metadataFromServer {
		if err := wire.WriteMap(c.rw, metadata); err != nil {
			return err
		}
	}
	if err := writeStatus(c.rw, status); err != nil {
		return err
	}
	if err := writeDigits20(c.rw, int64(typ)); err != nil {
		return err
	}
	if c.cookieMode {
		if err := writeVID20(c.rw, vid); err != nil {
			return err
		}
		if err := writeDigits20(c.rw, index); err != nil {
			return err
		}
	}

	var length int64
	if val != nil {
		length = val.Len()
	}
	if err := writeDigits20(c.rw, length); err != nil {
		return err
	}
	if val != nil && length > 0 {
		if _, err := val.WriteTo(c.rw); err != nil {
			return err
		}
	}
	return nil
}

func sendLongErr(c *Conn, err error) error {
	status, reason := statusFor(err)
	return sendLong(c, status, map[string]string{"nwsReason": reason}, 0, "", 0, nil)
}

func sendLongValue(c *Conn, val *value.Value, vid string, index int64) error {
	return sendLong(c, statusOK, map[string]string{}, val.Type, vid, index, val)
}

// sendLongText wraps a server-manufactured string as a Value and sends it
// as a long reply, used by list vars/list wss/mktemp ws.
func sendLongText(c *Conn, text string) error {
	val := value.New(typeDirectString, wire.NewMemPayload([]byte(text)))
	return sendLong(c, statusOK, map[string]string{}, typeDirectString, "", 0, val)
}
