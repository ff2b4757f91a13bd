package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"shiftwatch/internal/model"
	"shiftwatch/internal/normalize"
)

// StartFiles follows event export files and loads status files once.
func (p *Pipeline) StartFiles(ctx context.Context) {
	current := p.cfg.Get().Ingest.Files
	if !current.Enabled {
		if p.logger != nil {
			p.logger.Info("file ingest disabled")
		}
		return
	}
	for _, path := range current.EventPaths {
		if p.logger != nil {
			p.logger.Info("file tail ingest enabled", "path", path, "start_at_end", current.StartAtEnd)
		}
		go p.tailFile(ctx, path, current.StartAtEnd)
	}
	for _, path := range current.StatusPaths {
		n, err := p.LoadStatusFile(ctx, path)
		if p.logger == nil {
			continue
		}
		if err != nil {
			p.logger.Warn("status file load failed", "path", path, "err", err)
			continue
		}
		p.logger.Info("status file loaded", "path", path, "statuses", n)
	}
}

// LoadStatusFile reads a CSV or JSON-lines file of manual statuses into the
// sink and returns how many rows were stored.
func (p *Pipeline) LoadStatusFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	statuses, err := p.ReadStatuses(f, "file")
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if err := p.saveStatuses(ctx, statuses); err != nil {
		return 0, err
	}
	return len(statuses), nil
}

// ReadStatuses parses status rows; bad rows become warnings.
func (p *Pipeline) ReadStatuses(r io.Reader, source string) ([]model.ManualStatus, error) {
	parser := NewStatusParser()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 8192), 1024*1024)
	var out []model.ManualStatus
	for scanner.Scan() {
		fields, err := parser.ParseLine(scanner.Text())
		if err != nil || fields == nil {
			continue
		}
		st, err := normalize.NormalizeStatus(*fields)
		if err != nil {
			p.reject(err, fields.Name, source)
			continue
		}
		out = append(out, st)
	}
	return out, scanner.Err()
}

func (p *Pipeline) tailFile(ctx context.Context, path string, startAtEnd bool) {
	var file *os.File
	var offset int64
	parser := NewParser()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if file == nil {
			f, err := os.Open(path)
			if err != nil {
				if p.logger != nil {
					p.logger.Warn("tail open failed", "path", path, "err", err)
				}
				if !BackoffSleep(ctx, 500*time.Millisecond) {
					return
				}
				continue
			}
			file = f
			offset = 0
			parser = NewParser()
			if startAtEnd {
				if pos, err := file.Seek(0, io.SeekEnd); err == nil {
					offset = pos
				}
			}
		}

		reader := bufio.NewReader(file)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					if !BackoffSleep(ctx, 200*time.Millisecond) {
						_ = file.Close()
						return
					}
					info, statErr := os.Stat(path)
					if statErr == nil && info.Size() < offset {
						// truncated or rotated
						_ = file.Close()
						file = nil
						startAtEnd = false
						break
					}
					continue
				}
				if p.logger != nil {
					p.logger.Warn("tail read error", "path", path, "err", err)
				}
				_ = file.Close()
				file = nil
				break
			}
			offset += int64(len(line))
			p.handleLine(ctx, parser, line, "file")
		}
	}
}
