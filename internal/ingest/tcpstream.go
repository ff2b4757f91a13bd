package ingest

import (
	"bufio"
	"context"
	"errors"
	"net"
)

// StartTCPStream accepts newline-delimited badge events from terminals.
func (p *Pipeline) StartTCPStream(ctx context.Context) {
	current := p.cfg.Get().Ingest.TCPStream
	if !current.Enabled {
		if p.logger != nil {
			p.logger.Info("tcp stream ingest disabled")
		}
		return
	}
	if p.logger != nil {
		p.logger.Info("tcp stream ingest enabled", "addr", current.Addr)
	}
	ln, err := net.Listen("tcp", current.Addr)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("tcp stream listen error", "err", err)
		}
		return
	}
	p.serveTCP(ctx, ln)
}

func (p *Pipeline) serveTCP(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if p.logger != nil {
					p.logger.Warn("tcp stream accept error", "err", err)
				}
				continue
			}
			go p.handleTCPConn(ctx, conn)
		}
	}()
}

func (p *Pipeline) handleTCPConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	parser := NewParser()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 8192), 1024*1024)
	for scanner.Scan() {
		p.handleLine(ctx, parser, scanner.Text(), "tcp_stream")
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if err := scanner.Err(); err != nil && p.logger != nil {
		p.logger.Warn("tcp stream scanner error", "err", err)
	}
}
