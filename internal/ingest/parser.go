package ingest

import (
	"encoding/csv"
	"regexp"
	"strings"

	"shiftwatch/internal/normalize"
)

var (
	reTimestamp = regexp.MustCompile(`^\s*([0-9]{4}-[0-9]{2}-[0-9]{2}[ T][0-9:.+\-Z]+|[0-9]{1,2}/[0-9]{1,2}/[0-9]{4} [0-9:]+)`)
	reKV        = regexp.MustCompile(`(?i)([a-zA-Z_]+)=("[^"]*"|[^\s]+)`)
)

// Parser turns one line of a badge export into event fields. It keeps the
// CSV header it has seen, so use one Parser per stream.
type Parser struct {
	csv *CSVParser
}

func NewParser() *Parser {
	return &Parser{csv: NewCSVParser()}
}

func (p *Parser) ParseLine(line string) (*normalize.EventFields, error) {
	trim := strings.TrimSpace(line)
	if trim == "" {
		return nil, nil
	}
	if looksLikeJSON(trim) {
		if fields, err := parseJSON(trim); err == nil {
			fields.Raw = line
			return fields, nil
		}
	}
	if strings.Contains(trim, ",") && !reKV.MatchString(trim) {
		fields, err := p.csv.Parse(trim)
		if err == nil {
			if fields == nil {
				return nil, nil
			}
			fields.Raw = line
			return fields, nil
		}
	}
	fields, err := parsePlain(trim)
	if err != nil {
		return nil, err
	}
	fields.Raw = line
	return fields, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func parseJSON(line string) (*normalize.EventFields, error) {
	return ParseJSONBytes([]byte(line))
}

// parsePlain reads "<timestamp> name=<name>" or "<timestamp> <name...>".
func parsePlain(line string) (*normalize.EventFields, error) {
	fields := &normalize.EventFields{Extras: map[string]string{}}
	ts, rest := extractTimestamp(line)
	fields.Timestamp = ts

	kv := map[string]string{}
	for _, match := range reKV.FindAllStringSubmatch(line, -1) {
		kv[strings.ToLower(match[1])] = strings.Trim(match[2], `"`)
	}
	fields.Name = firstNonEmpty(kv, nameKeys...)
	for k, v := range kv {
		fields.Extras[k] = v
	}
	if fields.Name == "" && len(kv) == 0 {
		fields.Name = strings.TrimSpace(rest)
	}
	return fields, nil
}

func extractTimestamp(line string) (string, string) {
	m := reTimestamp.FindStringSubmatchIndex(line)
	if len(m) >= 4 {
		ts := strings.TrimSpace(line[m[2]:m[3]])
		rest := strings.TrimSpace(line[m[3]:])
		return ts, rest
	}
	return "", line
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

var (
	nameKeys      = []string{"person name", "person_name", "name", "employee", "nama", "nama karyawan"}
	timestampKeys = []string{"event time", "event_time", "timestamp", "time", "ts", "waktu"}
	dateKeys      = []string{"tanggal", "date", "day"}
	labelKeys     = []string{"keterangan", "label", "status", "reason"}
)

func isOneOf(v string, keys []string) bool {
	for _, k := range keys {
		if v == k {
			return true
		}
	}
	return false
}

// CSVParser reads badge rows. Without a header the columns are
// name, event time, the order of the exported sheet.
type CSVParser struct {
	header []string
}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(line string) (*normalize.EventFields, error) {
	record, err := readRecord(line)
	if err != nil || record == nil {
		return nil, err
	}
	if p.header == nil && looksLikeHeader(record, nameKeys, timestampKeys) {
		p.header = normalizeHeader(record)
		return nil, nil
	}
	return p.Fields(record), nil
}

// Fields maps one already split record.
func (p *CSVParser) Fields(record []string) *normalize.EventFields {
	fields := &normalize.EventFields{Extras: map[string]string{}}
	if p.header == nil {
		if len(record) >= 1 {
			fields.Name = strings.TrimSpace(record[0])
		}
		if len(record) >= 2 {
			fields.Timestamp = strings.TrimSpace(record[1])
		}
		return fields
	}
	for i, name := range p.header {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])
		switch {
		case isOneOf(name, nameKeys):
			fields.Name = value
		case isOneOf(name, timestampKeys):
			fields.Timestamp = value
		default:
			fields.Extras[name] = value
		}
	}
	return fields
}

// SetHeader feeds a header row read elsewhere; it reports whether the row
// was recognised.
func (p *CSVParser) SetHeader(record []string) bool {
	if !looksLikeHeader(record, nameKeys, timestampKeys) {
		return false
	}
	p.header = normalizeHeader(record)
	return true
}

// StatusParser reads manual status rows: employee, date, label.
type StatusParser struct {
	header []string
}

func NewStatusParser() *StatusParser {
	return &StatusParser{}
}

func (p *StatusParser) ParseLine(line string) (*normalize.StatusFields, error) {
	trim := strings.TrimSpace(line)
	if trim == "" {
		return nil, nil
	}
	if looksLikeJSON(trim) {
		return ParseStatusJSONBytes([]byte(trim))
	}
	record, err := readRecord(trim)
	if err != nil || record == nil {
		return nil, err
	}
	return p.Record(record), nil
}

// Record maps one split row and returns nil for a header row.
func (p *StatusParser) Record(record []string) *normalize.StatusFields {
	if p.header == nil && looksLikeHeader(record, nameKeys, dateKeys, labelKeys) {
		p.header = normalizeHeader(record)
		return nil
	}
	fields := &normalize.StatusFields{}
	if p.header == nil {
		if len(record) >= 1 {
			fields.Name = record[0]
		}
		if len(record) >= 2 {
			fields.Date = record[1]
		}
		if len(record) >= 3 {
			fields.Label = record[2]
		}
		return fields
	}
	for i, name := range p.header {
		if i >= len(record) {
			break
		}
		switch {
		case isOneOf(name, nameKeys):
			fields.Name = record[i]
		case isOneOf(name, dateKeys):
			fields.Date = record[i]
		case isOneOf(name, labelKeys):
			fields.Label = record[i]
		}
	}
	return fields
}

func readRecord(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, nil
	}
	return record, nil
}

func looksLikeHeader(record []string, groups ...[]string) bool {
	for _, v := range record {
		v = strings.ToLower(strings.TrimSpace(v))
		for _, keys := range groups {
			if isOneOf(v, keys) {
				return true
			}
		}
	}
	return false
}

func normalizeHeader(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}
