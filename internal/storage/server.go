package storage

import (
	"context"
	"encoding/json"
	"net"

	"github.com/jmgilman/go/errors"
)

// Serve accepts connections on l and answers protocol requests against b
// until ctx is canceled or l is closed. Each connection is handled on its own
// goroutine.
func Serve(ctx context.Context, l net.Listener, b Backend) error {
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return errors.Wrap(err, errors.CodeNetwork, "storage: accept")
		}
		go handleConn(conn, b)
	}
}

func handleConn(conn net.Conn, b Backend) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		_ = enc.Encode(handle(req, b))
	}
}

func handle(req Request, b Backend) Response {
	switch req.Op {
	case opGet:
		v, err := b.Get(req.Name)
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, Data: v}
	case opPut:
		if err := b.Put(req.Name, req.Data); err != nil {
			return failure(err)
		}
		return Response{OK: true}
	case opDelete:
		if err := b.Delete(req.Name); err != nil {
			return failure(err)
		}
		return Response{OK: true}
	default:
		return Response{OK: false, Error: "unknown op " + req.Op, Code: string(errors.CodeInvalidInput)}
	}
}

func failure(err error) Response {
	code := errors.GetCode(err)
	if errors.Is(err, ErrNotFound) {
		code = errors.CodeNotFound
	}
	return Response{OK: false, Error: err.Error(), Code: string(code)}
}
