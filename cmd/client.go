package cmd

import (
	"bufio"
	"fmt"
	"net"

	"portage/internal/record"
)

func dialBroker() (net.Conn, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("localhost:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("daemon not running: %w", err)
	}

	return conn, nil
}

// roundTrip sends one request record and reads records back until the
// final response arrives. Payload records preceding the response are
// handed to each.
func roundTrip(req *record.Record, each func(*record.Record)) (*record.Record, error) {
	conn, err := dialBroker()
	if err != nil {
		return nil, err
	}

	defer func(c net.Conn) {
		_ = c.Close()
	}(conn)

	if _, err := conn.Write(req.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	br := bufio.NewReader(conn)
	for {
		rec, err := record.Parse(br)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if record.IsResponse(rec) {
			return rec, nil
		}

		if each != nil {
			each(rec)
		}
	}
}
